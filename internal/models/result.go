package models

// Source identifies which stage produced an extraction result.
type Source string

const (
	// SourceSite is the tag for results produced by HTML extraction alone.
	SourceSite Source = "idealista:v1"
	// SourceLLM is the tag for results enriched by the language model.
	SourceLLM Source = "openai:v2"
)

// ExtractionResult is the structured output of the listing pipeline.
// Nil fields mean "could not be resolved"; the pipeline never errors out,
// it degrades to nulls. JSON field names are kept compatible with the
// frontend that consumes them.
type ExtractionResult struct {
	BuyPrice   *float64 `json:"buyPrice"`
	Sqm        *float64 `json:"sqm"`
	Rooms      *float64 `json:"rooms"`
	Bathrooms  *float64 `json:"banos"`
	City       *string  `json:"ciudad"`
	RegionCode *int     `json:"codigoComunidadAutonoma"`

	// FeatureText is the cleaned plain-text features block. It is the only
	// representation of listing features that may be sent to the LLM.
	FeatureText *string `json:"featuresText,omitempty"`

	// EstimatedRent is the expected market rent in whole EUR per month.
	EstimatedRent *int `json:"estimatedRent,omitempty"`
	// MonthlyRent mirrors EstimatedRent for older frontend clients.
	MonthlyRent *int `json:"alquilerMensual,omitempty"`

	Source Source `json:"source"`
}

// Empty returns a structurally complete result with every field unresolved.
func Empty(source Source) ExtractionResult {
	return ExtractionResult{Source: source}
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
