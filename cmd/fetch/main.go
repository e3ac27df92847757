package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/woozymasta/fencedraw/internal/config"
	"github.com/woozymasta/fencedraw/internal/datasvc"
	"github.com/woozymasta/fencedraw/internal/feature"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Options struct {
	ConfigFile string `short:"c" long:"config"   env:"CONFIG_FILE"   description:"Path to configuration file"`
	BaseURL    string `short:"b" long:"base-url" env:"DATA_BASE_URL" description:"Data service base URL, overrides config"`
	Kind       string `short:"k" long:"kind"     description:"Catalog kind to fetch" choice:"instances" choice:"geofences" default:"instances"`
	Output     string `short:"o" long:"out"      description:"Output file path. Writes to stdout if empty"`
	Format     string `short:"f" long:"format"   description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Type       string `short:"t" long:"type"     description:"Keep only features of this type"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if opts.BaseURL != "" {
		cfg.Service.BaseURL = opts.BaseURL
	}

	client := datasvc.New(cfg.Service.BaseURL, cfg.Service.Timeout, nil)
	raw, err := client.Fetch(context.Background(), cfg.Endpoints()[opts.Kind])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching %s: %v\n", opts.Kind, err)
		os.Exit(1)
	}

	c := feature.FromGeoJSONFeatures(raw, opts.Kind)
	if opts.Type != "" {
		kept := c.Features[:0]
		for _, f := range c.Features {
			if f.Type == opts.Type {
				kept = append(kept, f)
			}
		}
		c.Features = kept
	}

	outputData, err := json.MarshalIndent(feature.ToGeoJSON(c), "", "  ")
	if err == nil && opts.Format == "yaml" {
		outputData, err = toYAML(outputData)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, outputData, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully fetched %d %s to %s (format: %s)\n", c.Len(), opts.Kind, opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}

// toYAML re-encodes GeoJSON so geometry types survive the conversion.
func toYAML(data []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}
