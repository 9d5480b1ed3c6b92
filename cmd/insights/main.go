package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/config"
	"github.com/vshop/insights/internal/insights"
	"github.com/vshop/insights/internal/llm"
	"github.com/vshop/insights/internal/models"
	"github.com/vshop/insights/pkg/utils"
)

// Command line flags
var (
	file    = flag.String("file", "-", "Product JSON file (- reads stdin)")
	dryRun  = flag.Bool("dry-run", false, "Print the prompt and extracted attributes without calling the model")
	verbose = flag.Bool("verbose", false, "Enable verbose logging")
	force   = flag.Bool("force", false, "Call the model even when too few attributes were recognised")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.Server.LogLevel, os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	product, err := readProduct(*file)
	if err != nil {
		logger.WithError(err).Fatal("Failed to read product")
	}

	extractor := insights.NewExtractor(nil)
	if cfg.Insights.PatternsFile != "" {
		patterns, err := insights.LoadPatternsFile(cfg.Insights.PatternsFile)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load attribute patterns")
		}
		extractor = insights.NewExtractor(patterns)
	}

	input := extractor.NewInput(product)
	sufficient := insights.HasSufficientAttributes(input.Attributes)

	logger.WithFields(logrus.Fields{
		"title":      input.Title,
		"attributes": len(input.Attributes),
		"sufficient": sufficient,
	}).Debug("Attributes extracted")

	if *dryRun {
		printJSON(map[string]interface{}{
			"attributes": input.Attributes,
			"sufficient": sufficient,
		})
		fmt.Println()
		fmt.Println(insights.BuildPrompt(input))
		return
	}

	if !sufficient && !*force {
		logger.Warn("Too few recognised attributes, skipping generation (use -force to override)")
		os.Exit(2)
	}

	ctx := context.Background()

	var client llm.Client
	if cfg.LLM.Provider == config.ProviderGemini {
		client, err = llm.NewGeminiClient(ctx, cfg.ModelConfig(), logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create model client")
		}
	} else {
		client = llm.NewOpenAIClient(cfg.ModelConfig(), logger)
	}

	start := time.Now()
	result, ok := insights.NewService(client, logger).Generate(ctx, input)
	if !ok {
		logger.WithField("elapsed", time.Since(start).String()).Warn("No insights available")
		os.Exit(1)
	}

	printJSON(result)
}

func readProduct(path string) (models.Product, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.Product{}, err
		}
		defer f.Close()
		r = f
	}

	var product models.Product
	if err := json.NewDecoder(r).Decode(&product); err != nil {
		return models.Product{}, fmt.Errorf("failed to decode product: %w", err)
	}
	if product.Title == "" {
		return models.Product{}, fmt.Errorf("product title is required")
	}
	return product, nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("Failed to encode output: %v", err)
	}
}
