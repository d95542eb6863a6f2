package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/disintegration/imaging"

	"visionbridge/internal/app"
	"visionbridge/internal/config"
	"visionbridge/internal/service/camera"
)

const usage = `usage: probe [flags] connection|status|test|analyze

Checks the analysis service the server is configured for. analyze sends
the file named by -image through the same frame encoder the camera uses.
`

func main() {
	cfg := config.Load()

	backend := flag.String("backend", cfg.AnalysisBackend, "Analysis backend (http or ollama)")
	url := flag.String("url", "", "Analysis service URL (defaults to the configured one)")
	model := flag.String("model", cfg.OllamaModel, "Ollama model name")
	timeout := flag.Duration("timeout", cfg.AnalysisTimeout, "Request timeout")
	imagePath := flag.String("image", "", "Still image to analyze")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg.AnalysisBackend = *backend
	cfg.OllamaModel = *model
	cfg.AnalysisTimeout = *timeout
	if *url != "" {
		if cfg.AnalysisBackend == "ollama" {
			cfg.OllamaURL = *url
		} else {
			cfg.AnalysisURL = *url
		}
	}

	analyzer, err := app.NewAnalyzer(cfg)
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}

	ctx := context.Background()
	var out interface{}

	switch flag.Arg(0) {
	case "connection":
		out, err = analyzer.Ping(ctx)
	case "status":
		out, err = analyzer.Status(ctx)
	case "test":
		out, err = analyzer.Test(ctx)
	case "analyze":
		if *imagePath == "" {
			log.Fatal("analyze needs -image")
		}
		encoder, encErr := camera.NewEncoder(camera.Format(cfg.FrameFormat), cfg.FrameQuality)
		if encErr != nil {
			log.Fatalf("Failed to create encoder: %v", encErr)
		}
		img, openErr := imaging.Open(*imagePath, imaging.AutoOrientation(true))
		if openErr != nil {
			log.Fatalf("Failed to open %s: %v", *imagePath, openErr)
		}
		frame, encErr := encoder.Encode(img)
		if encErr != nil {
			log.Fatalf("Failed to encode %s: %v", *imagePath, encErr)
		}
		fmt.Printf("Sending %s (%d bytes)\n", frame.MIMEType, len(frame.Data))
		out, err = analyzer.Analyze(ctx, frame)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", flag.Arg(0), err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to print result: %v", err)
	}
}
