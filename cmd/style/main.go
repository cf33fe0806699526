package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/render"
	"github.com/woozymasta/quakemap/internal/style"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input   string        `short:"i" long:"in"      description:"Input feed: file path or http(s) URL. Reads from stdin if empty"`
	Output  string        `short:"o" long:"out"     description:"Output file path. Writes to stdout if empty"`
	Format  string        `short:"f" long:"format"  description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Timeout time.Duration `short:"t" long:"timeout" description:"Download timeout for URL input" default:"30s"`
	Legend  bool          `short:"l" long:"legend"  description:"Print the depth legend instead of styling a feed"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	var out any
	if opts.Legend {
		out = style.BuildLegend(style.LegendBounds())
	} else {
		fc, err := readFeed(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading feed: %v\n", err)
			os.Exit(1)
		}

		styled, stats := render.NewRenderer(nil).Render(fc)
		if stats.Skipped > 0 {
			fmt.Fprintf(os.Stderr, "Skipped %d malformed features\n", stats.Skipped)
		}
		out = styled
	}

	// marshal
	var outputData []byte
	var err error
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(out)
	} else {
		outputData, err = json.MarshalIndent(out, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully wrote %s (format: %s)\n", opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}

func readFeed(opts Options) (geo.GeoJSONFeatureCollection, error) {
	if strings.HasPrefix(opts.Input, "http://") || strings.HasPrefix(opts.Input, "https://") {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()

		res := feed.NewClient(opts.Input, "", opts.Timeout).FetchEarthquakes(ctx)
		return res.Value, res.Err
	}

	var inputData []byte
	var err error
	if opts.Input != "" {
		inputData, err = os.ReadFile(opts.Input)
	} else {
		inputData, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return geo.GeoJSONFeatureCollection{}, err
	}

	var fc geo.GeoJSONFeatureCollection
	if err := json.Unmarshal(inputData, &fc); err != nil {
		return geo.GeoJSONFeatureCollection{}, err
	}

	return fc, nil
}
