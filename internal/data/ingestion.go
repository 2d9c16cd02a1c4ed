package data

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IngestionConfig holds configuration for annotated PGN ingestion
type IngestionConfig struct {
	PGNPath        string  // Path to PGN file
	DatasetPath    string  // Path to output dataset
	MaxGames       int     // Maximum number of games to process (0 = all)
	MateScore      float64 // Value stored for announced mates
	SkipInvalid    bool    // Skip games that fail to replay instead of failing
	BatchSize      int     // Number of samples to batch before writing
	WorkerPoolSize int     // Number of parallel workers (<= 1 = sequential)

	Augmentation AugmentationConfig // Color-inverted copies, disabled by default

	// Progress, when set, is called after each game with the games handled so far.
	// Calls are serialised.
	Progress func(done, total int)
}

// DefaultIngestionConfig returns a config with sensible defaults
func DefaultIngestionConfig(pgnPath, datasetPath string) *IngestionConfig {
	return &IngestionConfig{
		PGNPath:        pgnPath,
		DatasetPath:    datasetPath,
		MateScore:      100,
		SkipInvalid:    true,
		BatchSize:      100,
		WorkerPoolSize: 4,
	}
}

// IngestionStats summarises an ingestion run
type IngestionStats struct {
	TotalGames      int
	GamesProcessed  int
	SamplesIngested int
	SkippedGames    int
}

// Ingestor turns annotated games into dataset samples
type Ingestor struct {
	config  *IngestionConfig
	dataset *Dataset
	logger  *zap.Logger
}

// NewIngestor creates a new ingestor
func NewIngestor(config *IngestionConfig, logger *zap.Logger) (*Ingestor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dataset, err := NewDataset(config.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}

	return &Ingestor{
		config:  config,
		dataset: dataset,
		logger:  logger,
	}, nil
}

// Dataset returns the dataset samples are written to
func (ing *Ingestor) Dataset() *Dataset {
	return ing.dataset
}

// Close closes the ingestor and underlying dataset
func (ing *Ingestor) Close() error {
	return ing.dataset.Close()
}

// Ingest parses the PGN file and stores every annotated position
func (ing *Ingestor) Ingest() (*IngestionStats, error) {
	stats := &IngestionStats{}

	games, err := NewPGNParser(ing.config.PGNPath).ParsePGN()
	if err != nil {
		return stats, fmt.Errorf("failed to parse PGN: %w", err)
	}
	stats.TotalGames = len(games)

	ing.logger.Info("Parsed games",
		zap.Int("games", len(games)),
		zap.String("file", filepath.Base(ing.config.PGNPath)),
	)

	if ing.config.MaxGames > 0 && len(games) > ing.config.MaxGames {
		games = games[:ing.config.MaxGames]
	}

	batchSize := ing.config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var (
		mu    sync.Mutex
		done  int
		batch []*Sample
		rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ing.dataset.AddBatch(batch); err != nil {
			return fmt.Errorf("failed to write batch: %w", err)
		}
		stats.SamplesIngested += len(batch)
		batch = batch[:0]
		return nil
	}

	var g errgroup.Group
	if ing.config.WorkerPoolSize > 1 {
		g.SetLimit(ing.config.WorkerPoolSize)
	} else {
		g.SetLimit(1)
	}

	for i, game := range games {
		i, game := i, game
		g.Go(func() error {
			gameID := fmt.Sprintf("game_%d", i)

			samples, err := ExtractSamples(game, gameID, ing.config.MateScore)

			mu.Lock()
			defer mu.Unlock()

			done++
			if ing.config.Progress != nil {
				ing.config.Progress(done, len(games))
			}

			if err != nil {
				if ing.config.SkipInvalid {
					stats.SkippedGames++
					ing.logger.Warn("Skipping game", zap.String("game", gameID), zap.Error(err))
					return nil
				}
				return err
			}

			stats.GamesProcessed++
			batch = append(batch, AugmentBatch(samples, ing.config.Augmentation, rng)...)
			if len(batch) >= batchSize {
				return flush()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	mu.Lock()
	defer mu.Unlock()
	if err := flush(); err != nil {
		return stats, err
	}

	ing.logger.Info("Ingestion complete",
		zap.Int("games_processed", stats.GamesProcessed),
		zap.Int("samples", stats.SamplesIngested),
		zap.Int("skipped", stats.SkippedGames),
	)

	return stats, nil
}
