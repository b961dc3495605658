// Command autofill exercises the extraction pipeline from the terminal,
// against a live URL or a saved HTML file. Handy for checking that site
// markup changes have not broken the extractor.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"piso-search/internal/autofill"
	"piso-search/internal/config"
	"piso-search/internal/extractor"
	"piso-search/internal/llm"
	"piso-search/internal/models"
	"piso-search/internal/rentmarket"
	"piso-search/internal/scraper"
	"piso-search/internal/territory"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	os.Args = os.Args[1:] // Shift args for flag parsing

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelWarn,
		TimeFormat: time.TimeOnly,
	})))

	switch cmd {
	case "url":
		runURL()
	case "html":
		runHTML()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: autofill <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  url   Fetch a listing URL and run the full pipeline")
	fmt.Println("  html  Run extraction over a saved HTML file")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -expect k=v,...  Fail unless the result matches (price, sqm, rooms, baths, city, region)")
}

func runURL() {
	expect := flag.String("expect", "", "Expected values, comma-separated k=v pairs")
	useLLM := flag.Bool("llm", false, "Enable LLM enrichment (needs OPENAI_API_KEY)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: autofill url [options] <listing-url>")
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		fatal("loading config: %v", err)
	}
	if !*useLLM {
		cfg.ForceSource = "site"
	}

	svc, err := buildService(cfg)
	if err != nil {
		fatal("wiring pipeline: %v", err)
	}

	result := svc.AutofillFromURL(context.Background(), flag.Arg(0), "")
	report(result, *expect)
}

func runHTML() {
	expect := flag.String("expect", "", "Expected values, comma-separated k=v pairs")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: autofill html [options] <file.html>")
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fatal("reading file: %v", err)
	}

	gaz, err := territory.Load()
	if err != nil {
		fatal("loading gazetteer: %v", err)
	}

	result := extractor.New(gaz).ExtractListing(string(data))
	report(result, *expect)
}

func buildService(cfg config.Config) (*autofill.Service, error) {
	gaz, err := territory.Load()
	if err != nil {
		return nil, err
	}

	jar := scraper.NewCookieJar()
	throttle := scraper.NewThrottle(cfg.RateLimit)
	fetcher := scraper.NewFetcher()

	store, err := rentmarket.OpenStore(cfg.RentMarketPath, cfg.RentMarketTTL)
	if err != nil {
		return nil, err
	}
	market := rentmarket.NewLookup(gaz, store, fetcher, jar, throttle)
	static, err := rentmarket.NewStatic(gaz)
	if err != nil {
		return nil, err
	}

	client := llm.NewClient(llm.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       float32(cfg.LLM.Temperature),
		Timeout:           cfg.LLM.Timeout,
		MaxCallsPerMinute: cfg.LLM.MaxCallsPerMinute,
		MaxCallsPerHour:   cfg.LLM.MaxCallsPerHour,
	})

	return autofill.New(extractor.New(gaz), fetcher, jar, throttle, client, market, static, nil,
		autofill.Options{CacheTTL: cfg.CacheTTL, ForceSource: cfg.ForceSource}), nil
}

func report(result models.ExtractionResult, expect string) {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fatal("encoding result: %v", err)
	}
	fmt.Println(string(out))

	if expect == "" {
		return
	}

	failures := check(result, expect)
	if len(failures) > 0 {
		for _, f := range failures {
			fmt.Fprintln(os.Stderr, "MISMATCH:", f)
		}
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "OK: all expectations met")
}

func check(result models.ExtractionResult, expect string) []string {
	var failures []string
	for _, pair := range strings.Split(expect, ",") {
		key, want, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			failures = append(failures, fmt.Sprintf("bad expectation %q", pair))
			continue
		}

		switch key {
		case "price":
			failures = appendFloatCheck(failures, key, want, result.BuyPrice)
		case "sqm":
			failures = appendFloatCheck(failures, key, want, result.Sqm)
		case "rooms":
			failures = appendFloatCheck(failures, key, want, result.Rooms)
		case "baths":
			failures = appendFloatCheck(failures, key, want, result.Bathrooms)
		case "city":
			if result.City == nil || *result.City != want {
				failures = append(failures, fmt.Sprintf("city: want %q, got %v", want, deref(result.City)))
			}
		case "region":
			n, _ := strconv.Atoi(want)
			if result.RegionCode == nil {
				failures = append(failures, fmt.Sprintf("region: want %d, got nil", n))
			} else if *result.RegionCode != n {
				failures = append(failures, fmt.Sprintf("region: want %d, got %d", n, *result.RegionCode))
			}
		default:
			failures = append(failures, fmt.Sprintf("unknown expectation key %q", key))
		}
	}
	return failures
}

func appendFloatCheck(failures []string, key, want string, got *float64) []string {
	n, err := strconv.ParseFloat(want, 64)
	if err != nil {
		return append(failures, fmt.Sprintf("%s: bad expected value %q", key, want))
	}
	if got == nil {
		return append(failures, fmt.Sprintf("%s: want %g, got nil", key, n))
	}
	if *got != n {
		return append(failures, fmt.Sprintf("%s: want %g, got %g", key, n, *got))
	}
	return failures
}

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
