package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/thyrook/abeval/internal/config"
	"github.com/thyrook/abeval/internal/data"
	"github.com/thyrook/abeval/internal/decision"
	"github.com/thyrook/abeval/internal/eval"
	"github.com/thyrook/abeval/internal/iface"
	"github.com/thyrook/abeval/internal/model"
	"github.com/thyrook/abeval/internal/position"
	"github.com/thyrook/abeval/internal/search"
	"github.com/thyrook/abeval/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	fen := flag.String("fen", position.StartFEN, "Position to search, in FEN")
	depth := flag.Int("depth", 0, "Search depth in plies (overrides config)")
	algorithm := flag.String("algorithm", "", "Search algorithm: alphabeta or minimax (overrides config)")
	strategy := flag.String("strategy", "", "Evaluator: material or learned (overrides config)")
	parallel := flag.Bool("parallel", false, "Search root moves concurrently")
	plies := flag.Int("plies", 1, "Number of consecutive moves to select, playing each one")
	board := flag.Bool("board", false, "Print the board before each search")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	quiet := flag.Bool("quiet", false, "Only print the chosen moves")
	clearCache := flag.Bool("clear-cache", false, "Remove every cached evaluation and exit")
	exportCache := flag.String("export-cache", "", "Write cached evaluations to this JSON file and exit")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *depth > 0 {
		cfg.Search.Depth = *depth
	}
	if *algorithm != "" {
		cfg.Search.Algorithm = *algorithm
	}
	if *strategy != "" {
		cfg.Evaluator.Strategy = *strategy
	}
	if *parallel {
		cfg.Search.Parallel = true
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, err := iface.NewLogger(cfg.Logging.Path, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	log := logger.GetZapLogger()

	cli := iface.NewCLI(os.Stdout, *quiet)

	if *clearCache || *exportCache != "" {
		if err := maintainCache(cfg.Cache.Path, *clearCache, *exportCache, cli); err != nil {
			cli.PrintError(err)
			logger.Close()
			os.Exit(1)
		}
		return
	}

	cli.PrintWelcome()

	if err := run(cfg, *fen, *plies, *board, cli, log); err != nil {
		cli.PrintError(err)
		log.Error("find-move failed", zap.Error(err))
		logger.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, fen string, plies int, showBoard bool, cli *iface.CLI, log *zap.Logger) error {
	p, err := position.Parse(fen)
	if err != nil {
		return err
	}

	ev, closeEval, err := buildEvaluator(cfg, log)
	if err != nil {
		return err
	}
	defer closeEval()

	algo, err := search.ParseAlgorithm(cfg.Search.Algorithm)
	if err != nil {
		return err
	}
	searcher := search.NewEngine(ev).WithAlgorithm(algo)

	selector := decision.NewEngine(searcher, decision.Config{
		MaxDepth:    cfg.Search.Depth,
		Parallel:    cfg.Search.Parallel,
		Workers:     cfg.Search.Workers,
		HistorySize: 100,
	}, log)
	if f, ok := ev.(decision.Flusher); ok {
		selector.WithFlusher(f)
	}

	var current position.Position = p
	for i := 0; i < plies; i++ {
		if showBoard {
			if b, ok := current.(*position.Board); ok {
				fmt.Println(b.Draw())
			}
		}
		cli.PrintStatus(fmt.Sprintf("Searching %s to depth %d (%s, %s)", current.Snapshot(), cfg.Search.Depth, algo, cfg.Evaluator.Strategy))

		d, err := selector.SelectMove(current, current.Turn())
		if err != nil {
			return err
		}
		cli.PrintDecision(d)

		if d.Terminal {
			break
		}
		current, err = current.Apply(d.Move)
		if err != nil {
			return err
		}
	}

	cli.PrintStatistics(selector.GetStatistics())
	return nil
}

// maintainCache exports and/or clears the evaluation cache. Export runs first
// so a clear can be preceded by a backup in one invocation.
func maintainCache(path string, clearAll bool, export string, cli *iface.CLI) error {
	cache, err := storage.NewEvalCache(path)
	if err != nil {
		return err
	}
	defer cache.Close()

	stats, err := cache.GetStats()
	if err != nil {
		return err
	}

	if export != "" {
		if err := cache.ExportToJSON(export); err != nil {
			return err
		}
		cli.PrintStatus(fmt.Sprintf("Exported %d cached evaluations to %s", stats.Entries, export))
	}
	if clearAll {
		if err := cache.Clear(); err != nil {
			return err
		}
		cli.PrintStatus(fmt.Sprintf("Cleared %d cached evaluations from %s", stats.Entries, path))
	}
	return nil
}

// buildEvaluator wires the configured evaluator, loading the value network and
// wrapping the result in the persistent cache when those are enabled.
func buildEvaluator(cfg *config.Config, log *zap.Logger) (eval.Evaluator, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	strategy, err := eval.ParseStrategy(cfg.Evaluator.Strategy)
	if err != nil {
		return nil, closeAll, err
	}
	enc, err := data.ParseEncoding(cfg.Evaluator.Encoding)
	if err != nil {
		return nil, closeAll, err
	}

	opts := eval.Options{Strategy: strategy, Encoding: enc}
	if strategy == eval.StrategyLearned {
		if !model.ModelExists(cfg.Model.ModelPath) {
			return nil, closeAll, fmt.Errorf("%w: %s", eval.ErrModelUnavailable, cfg.Model.ModelPath)
		}
		net, err := model.LoadValueNet(cfg.Model.ModelPath)
		if err != nil {
			return nil, closeAll, fmt.Errorf("%w: %w", eval.ErrModelUnavailable, err)
		}
		closers = append(closers, func() { net.Close() })
		opts.Model = net

		log.Info("Loaded value network",
			zap.String("path", cfg.Model.ModelPath),
			zap.Int("input_size", net.InputSize()),
			zap.Ints("hidden_sizes", net.HiddenSizes()),
		)
	}

	ev, err := eval.New(opts)
	if err != nil {
		return nil, closeAll, err
	}

	if !cfg.Cache.Enabled {
		return ev, closeAll, nil
	}

	cache, err := storage.NewEvalCache(cfg.Cache.Path)
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}
	closers = append(closers, func() {
		if err := cache.Close(); err != nil {
			log.Warn("Failed to close evaluation cache", zap.Error(err))
		}
	})

	tag, err := cfg.CacheTag()
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}
	if stats, err := cache.GetStats(); err == nil {
		log.Debug("Opened evaluation cache",
			zap.String("path", stats.DBPath),
			zap.String("tag", tag),
			zap.Uint64("entries", stats.Entries),
		)
	}

	return eval.NewCached(ev, cache, tag), closeAll, nil
}
