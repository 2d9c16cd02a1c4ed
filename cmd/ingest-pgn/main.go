package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thyrook/abeval/internal/config"
	"github.com/thyrook/abeval/internal/data"
	"github.com/thyrook/abeval/internal/iface"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "config.json", "Path to configuration file")
	pgnPath := flag.String("pgn", "", "Path to annotated PGN file to ingest")
	datasetPath := flag.String("dataset", "", "Path to output dataset (overrides config)")
	maxGames := flag.Int("max-games", 0, "Maximum number of games to process (0 = all)")
	showStats := flag.Bool("stats", false, "Show dataset statistics")
	workers := flag.Int("workers", 4, "Number of parallel workers")
	augment := flag.Float64("augment", 0, "Probability of adding a color-inverted copy of each position")
	encoding := flag.String("encoding", "", "Feature encoding checked with -stats (onehot or ordinal)")

	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *datasetPath != "" {
		cfg.Data.DatasetPath = *datasetPath
	}
	if *encoding != "" {
		cfg.Evaluator.Encoding = *encoding
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Show stats if requested
	if *showStats {
		showDatasetStats(cfg)
		return
	}

	// Require PGN path for ingestion
	if *pgnPath == "" {
		fmt.Println("Annotated Game Ingestion Tool")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  Ingest PGN file:")
		fmt.Println("    ingest-pgn -pgn=games.pgn -dataset=output.db")
		fmt.Println()
		fmt.Println("  Show statistics:")
		fmt.Println("    ingest-pgn -dataset=output.db -stats")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := data.ValidatePGN(*pgnPath); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid PGN file: %v\n", err)
		os.Exit(1)
	}

	logger, err := iface.NewLogger(cfg.Logging.Path, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ingestCfg := data.DefaultIngestionConfig(*pgnPath, cfg.Data.DatasetPath)
	ingestCfg.MaxGames = *maxGames
	ingestCfg.MateScore = cfg.Data.MateScore
	ingestCfg.WorkerPoolSize = *workers
	if *augment > 0 {
		ingestCfg.Augmentation = data.AugmentationConfig{ColorInvertProb: *augment, Enabled: true}
	}

	var bar *iface.ProgressBar
	ingestCfg.Progress = func(done, total int) {
		if bar == nil {
			bar = iface.NewProgressBar(os.Stdout, total, 40)
		}
		bar.Update(done)
	}

	fmt.Printf("Initializing dataset ingestion...\n")
	fmt.Printf("  PGN file: %s\n", *pgnPath)
	fmt.Printf("  Dataset: %s\n", cfg.Data.DatasetPath)
	fmt.Printf("  Workers: %d\n", *workers)
	fmt.Println()

	ingestor, err := data.NewIngestor(ingestCfg, logger.GetZapLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create ingestor: %v\n", err)
		os.Exit(1)
	}
	defer ingestor.Close()

	stats, err := ingestor.Ingest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}

	// Print summary
	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("Ingestion Complete")
	fmt.Println("============================================================")
	fmt.Printf("Games processed:   %d / %d\n", stats.GamesProcessed, stats.TotalGames)
	fmt.Printf("Games skipped:     %d\n", stats.SkippedGames)
	fmt.Printf("Samples ingested:  %d\n", stats.SamplesIngested)
	fmt.Println()
}

func showDatasetStats(cfg *config.Config) {
	enc, err := data.ParseEncoding(cfg.Evaluator.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	dataset, err := data.NewDataset(cfg.Data.DatasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open dataset: %v\n", err)
		os.Exit(1)
	}
	defer dataset.Close()

	stats, err := dataset.GetStats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Dataset Statistics")
	fmt.Println("========================================")
	fmt.Printf("File:            %s\n", stats.FilePath)
	fmt.Printf("Total entries:   %d\n", stats.TotalEntries)
	fmt.Printf("File size:       %.2f MB\n", float64(stats.FileSize)/1024/1024)
	fmt.Println()

	// Show sample entries
	if stats.TotalEntries == 0 {
		return
	}

	fmt.Println("Loading first 5 entries...")
	entries, err := dataset.LoadBatch(0, 5)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sample: %v\n", err)
		return
	}

	for i, entry := range entries {
		fmt.Printf("\nEntry %d:\n", i+1)
		fmt.Printf("  Game ID:   %s\n", entry.GameID)
		fmt.Printf("  Ply:       %d\n", entry.Ply)
		fmt.Printf("  FEN:       %s\n", entry.FEN)
		fmt.Printf("  Eval:      %+.2f (target %+.2f)\n", entry.Eval, entry.Target(cfg.Data.ClipRange))

		features, err := entry.Features(enc)
		if err != nil {
			fmt.Printf("  Features:  error: %v\n", err)
			continue
		}
		fmt.Printf("  Features:  %d (%s)\n", len(features), enc)
	}
}
