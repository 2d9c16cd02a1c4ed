package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/thyrook/abeval/internal/config"
	"github.com/thyrook/abeval/internal/data"
	"github.com/thyrook/abeval/internal/eval"
	"github.com/thyrook/abeval/internal/iface"
	"github.com/thyrook/abeval/internal/model"
	"github.com/thyrook/abeval/internal/position"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	initModel := flag.Bool("init", false, "Create a freshly initialised network at the model path if none exists")
	fen := flag.String("fen", position.StartFEN, "Position to evaluate with both evaluators")
	samples := flag.Int("samples", 0, "Number of dataset samples to score the network against (0 = skip)")
	runs := flag.Int("runs", 100, "Inference runs for the latency measurement")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fail("failed to load configuration: %v", err)
	}

	enc, err := data.ParseEncoding(cfg.Evaluator.Encoding)
	if err != nil {
		fail("%v", err)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("  Value Network Check")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()

	if !model.ModelExists(cfg.Model.ModelPath) {
		if !*initModel {
			fail("no model at %s (run with -init to create one)", cfg.Model.ModelPath)
		}
		net, err := model.NewValueNet(enc.Size(), cfg.Model.HiddenSizes)
		if err != nil {
			fail("failed to create network: %v", err)
		}
		if err := net.Save(cfg.Model.ModelPath); err != nil {
			fail("failed to save network: %v", err)
		}
		net.Close()
		fmt.Printf("✓ Created untrained network at %s\n\n", cfg.Model.ModelPath)
	}

	net, err := model.LoadValueNet(cfg.Model.ModelPath)
	if err != nil {
		fail("failed to load network: %v", err)
	}
	defer net.Close()

	fmt.Println("Configuration:")
	fmt.Printf("  Model:        %s\n", cfg.Model.ModelPath)
	fmt.Printf("  Encoding:     %s (%d features)\n", enc, enc.Size())
	fmt.Printf("  Layout:       %d → %v → 1\n", net.InputSize(), net.HiddenSizes())
	fmt.Printf("  Parameters:   %d tensors\n", len(net.Learnables()))
	fmt.Println()

	learned, err := eval.NewLearned(net, enc)
	if err != nil {
		fail("%v", err)
	}

	p, err := position.Parse(*fen)
	if err != nil {
		fail("%v", err)
	}

	material, err := eval.NewMaterial().Evaluate(p)
	if err != nil {
		fail("material evaluation failed: %v", err)
	}
	score, err := learned.Evaluate(p)
	if err != nil {
		fail("learned evaluation failed: %v", err)
	}

	fmt.Println("Position:")
	fmt.Println(p.Draw())
	fmt.Printf("  Material:  %+.3f\n", material)
	fmt.Printf("  Learned:   %+.3f\n", score)
	fmt.Println()

	features, err := data.EncodeFeatures(p.Snapshot(), enc)
	if err != nil {
		fail("%v", err)
	}
	if *runs > 0 {
		start := time.Now()
		for i := 0; i < *runs; i++ {
			if _, err := net.Predict(features); err != nil {
				fail("inference failed: %v", err)
			}
		}
		elapsed := time.Since(start)
		fmt.Printf("Latency: %.3f ms per inference over %d runs\n\n", float64(elapsed.Microseconds())/float64(*runs)/1000.0, *runs)
	}

	if *samples > 0 {
		scoreDataset(cfg, learned, *samples)
	}
}

// scoreDataset reports the network error against the clipped dataset targets.
func scoreDataset(cfg *config.Config, learned *eval.Learned, n int) {
	dataset, err := data.NewDataset(cfg.Data.DatasetPath)
	if err != nil {
		fail("failed to open dataset: %v", err)
	}
	defer dataset.Close()

	batch, err := dataset.LoadBatch(0, n)
	if err != nil {
		fail("failed to load samples: %v", err)
	}
	if len(batch) == 0 {
		fmt.Println("Dataset is empty")
		return
	}

	var absErr, sqErr float64
	scored := 0
	bar := iface.NewProgressBar(os.Stdout, len(batch), 40)
	for i, sample := range batch {
		bar.Update(i + 1)

		p, err := position.Parse(sample.FEN)
		if err != nil {
			continue
		}
		pred, err := learned.Evaluate(p)
		if err != nil || math.IsInf(pred, 0) {
			continue
		}
		diff := pred - sample.Target(cfg.Data.ClipRange)
		absErr += math.Abs(diff)
		sqErr += diff * diff
		scored++
	}

	fmt.Println("Dataset:")
	fmt.Printf("  Samples scored:  %d / %d\n", scored, len(batch))
	if scored > 0 {
		fmt.Printf("  MAE:             %.4f\n", absErr/float64(scored))
		fmt.Printf("  RMSE:            %.4f\n", math.Sqrt(sqErr/float64(scored)))
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
