package decision

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/thyrook/abeval/internal/eval"
	"github.com/thyrook/abeval/internal/position"
	pt "github.com/thyrook/abeval/internal/position/positiontest"
	"github.com/thyrook/abeval/internal/search"
	"github.com/thyrook/abeval/internal/storage"
)

func newEngine(t *testing.T, ev eval.Evaluator, maxDepth int) *Engine {
	t.Helper()
	config := DefaultConfig()
	config.MaxDepth = maxDepth
	return NewEngine(search.NewEngine(ev), config, zaptest.NewLogger(t))
}

func TestSelectMoveMateInOne(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		move  position.Move
		score float64
	}{
		{"White back rank", "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", "a1a8", math.Inf(1)},
		{"Black back rank", "r5k1/8/8/8/8/8/5PPP/6K1 b - - 0 1", "a8a1", math.Inf(-1)},
		{"Scholar", "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 4 4", "h5f7", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := position.MustParse(tt.fen)
			e := newEngine(t, eval.NewMaterial(), 3)

			d, err := e.SelectMove(p, p.Turn())
			if err != nil {
				t.Fatalf("SelectMove failed: %v", err)
			}
			if d.Move != tt.move {
				t.Errorf("Expected %s, got %s", tt.move, d.Move)
			}
			if d.Score != tt.score || d.Depth != 1 {
				t.Errorf("Expected score %v at depth 1, got %v at %d", tt.score, d.Score, d.Depth)
			}
			// The mate is found without searching.
			if d.Nodes != 0 {
				t.Errorf("Expected no search nodes, got %d", d.Nodes)
			}
		})
	}
}

func TestSelectMovePrefersFasterMate(t *testing.T) {
	root := pt.Branch("root", 0,
		pt.Draw("even"),
		pt.Branch("slow", 0,
			pt.Branch("slow.1", 0,
				pt.Branch("slow.1.1", 0,
					pt.Branch("slow.1.1.1", 0, pt.Mate("slow.mate")),
				),
			),
		),
		pt.Branch("fast", 0,
			pt.Branch("fast.1", 0, pt.Mate("fast.mate")),
		),
	)
	tree := pt.NewTree(root, position.White)

	for _, parallel := range []bool{false, true} {
		config := DefaultConfig()
		config.MaxDepth = 5
		config.Parallel = parallel
		e := NewEngine(search.NewEngine(tree.Evaluator()), config, zaptest.NewLogger(t))

		d, err := e.SelectMove(tree.Root(), position.White)
		if err != nil {
			t.Fatalf("SelectMove failed: %v", err)
		}
		if d.Move != "fast" || !math.IsInf(d.Score, 1) || d.Depth != 3 {
			t.Errorf("parallel=%v: expected fast mate at depth 3, got %s %v at %d", parallel, d.Move, d.Score, d.Depth)
		}
		if !d.IsMate() {
			t.Error("Expected IsMate")
		}
	}
}

func TestSelectMoveLongestDefence(t *testing.T) {
	root := pt.Branch("root", 0,
		pt.Branch("A", 0, pt.Mate("A.mate")),
		pt.Branch("B", 0,
			pt.Branch("B1", 0,
				pt.Branch("B1a", 0, pt.Mate("B1a.mate")),
			),
		),
	)
	tree := pt.NewTree(root, position.White)
	e := newEngine(t, tree.Evaluator(), 4)

	d, err := e.SelectMove(tree.Root(), position.White)
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if d.Move != "B" || !math.IsInf(d.Score, -1) || d.Depth != 4 {
		t.Errorf("Expected B losing at depth 4, got %s %v at %d", d.Move, d.Score, d.Depth)
	}
}

func TestSelectMoveSingleBest(t *testing.T) {
	root := pt.Branch("root", 0,
		pt.Branch("A", 0, pt.Leaf("A1", 1)),
		pt.Branch("B", 0, pt.Leaf("B1", 5)),
		pt.Branch("C", 0, pt.Leaf("C1", 3)),
	)
	tree := pt.NewTree(root, position.White)
	ev := tree.Evaluator()
	e := newEngine(t, ev, 2)

	d, err := e.SelectMove(tree.Root(), position.White)
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if d.Move != "B" || d.Score != 5 || d.TieBreak {
		t.Errorf("Expected B with 5 and no tie-break, got %+v", d)
	}
	// One evaluation per leaf, none for a tie-break.
	if ev.Calls() != 3 {
		t.Errorf("Expected 3 evaluations, got %d", ev.Calls())
	}
	if len(d.Candidates) != 3 {
		t.Errorf("Expected 3 candidates, got %d", len(d.Candidates))
	}
}

func TestSelectMoveTieBreak(t *testing.T) {
	tests := []struct {
		name  string
		side  position.Color
		move  position.Move
		score float64
	}{
		{"White maximises", position.White, "C", 2},
		{"Black minimises", position.Black, "B", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// B and C tie at 3 after search; their static scores differ.
			root := pt.Branch("root", 0,
				pt.Branch("A", 9, pt.Leaf("A1", 1)),
				pt.Branch("B", 0.5, pt.Leaf("B1", 3)),
				pt.Branch("C", 2, pt.Leaf("C1", 3)),
				pt.Branch("D", -4, pt.Leaf("D1", 3)),
			)
			if tt.side == position.Black {
				root.Children[0].Children[0].Score = 7
				root.Children[3].Children[0].Score = 4
			} else {
				root.Children[3].Children[0].Score = 2
			}
			tree := pt.NewTree(root, tt.side)
			ev := tree.Evaluator()
			e := newEngine(t, ev, 2)

			d, err := e.SelectMove(tree.Root(), tt.side)
			if err != nil {
				t.Fatalf("SelectMove failed: %v", err)
			}
			if d.Move != tt.move || d.Score != tt.score || !d.TieBreak {
				t.Errorf("Expected %s with static %v, got %s %v (tie-break %v)", tt.move, tt.score, d.Move, d.Score, d.TieBreak)
			}

			// Only the tied successors are evaluated statically.
			seen := ev.Seen()
			statics := seen[len(seen)-2:]
			if statics[0] != "B" || statics[1] != "C" {
				t.Errorf("Expected static evaluation of B and C, got %v", statics)
			}
			for _, c := range d.Candidates {
				tied := c.Move == "B" || c.Move == "C"
				if tied != (c.Static != nil) {
					t.Errorf("Candidate %s: static set = %v", c.Move, c.Static != nil)
				}
			}
		})
	}
}

func TestSelectMoveTieBreakFirstWins(t *testing.T) {
	root := pt.Branch("root", 0,
		pt.Branch("A", 1, pt.Leaf("A1", 0)),
		pt.Branch("B", 1, pt.Leaf("B1", 0)),
	)
	tree := pt.NewTree(root, position.White)

	d, err := newEngine(t, tree.Evaluator(), 2).SelectMove(tree.Root(), position.White)
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if d.Move != "A" {
		t.Errorf("Expected first move on a full tie, got %s", d.Move)
	}
}

func TestSelectMoveTerminalRoot(t *testing.T) {
	tests := []struct {
		name   string
		fen    string
		score  float64
		status position.Status
	}{
		{"Stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", 0, position.Stalemate},
		{"Checkmate", "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", math.Inf(-1), position.Checkmate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := position.MustParse(tt.fen)
			d, err := newEngine(t, eval.NewMaterial(), 3).SelectMove(p, p.Turn())
			if err != nil {
				t.Fatalf("SelectMove failed: %v", err)
			}
			if d.Move != position.NoMove || !d.Terminal || d.Status != tt.status {
				t.Errorf("Expected terminal %s with no move, got %+v", tt.status, d)
			}
			if d.Score != tt.score {
				t.Errorf("Expected score %v, got %v", tt.score, d.Score)
			}
		})
	}
}

func TestSelectMoveErrors(t *testing.T) {
	p := position.Start()
	e := newEngine(t, eval.NewMaterial(), 2)

	if _, err := e.SelectMove(p, position.Black); !errors.Is(err, ErrSideMismatch) {
		t.Errorf("Expected ErrSideMismatch, got %v", err)
	}

	// An ongoing root without moves is a broken rules collaborator.
	stuck := pt.NewTree(pt.Leaf("stuck", 0), position.White)
	if _, err := e.SelectMove(stuck.Root(), position.White); !errors.Is(err, search.ErrNoLegalMoves) {
		t.Errorf("Expected ErrNoLegalMoves, got %v", err)
	}

	tree := pt.NewTree(pt.Branch("root", 0,
		pt.Branch("A", 0, pt.Leaf("A1", 1)),
		pt.Branch("B", 0, pt.Leaf("B1", 2)),
	), position.White)
	ev := tree.Evaluator()
	ev.FailOn("B1", eval.ErrEvaluation)

	for _, parallel := range []bool{false, true} {
		config := DefaultConfig()
		config.MaxDepth = 2
		config.Parallel = parallel
		failing := NewEngine(search.NewEngine(ev), config, zaptest.NewLogger(t))

		d, err := failing.SelectMove(tree.Root(), position.White)
		if !errors.Is(err, eval.ErrEvaluation) || d != nil {
			t.Errorf("parallel=%v: expected ErrEvaluation and no decision, got %v, %v", parallel, d, err)
		}
		if stats := failing.GetStatistics(); stats.FailedDecisions != 1 {
			t.Errorf("Expected 1 failed decision, got %d", stats.FailedDecisions)
		}
	}

	stats := e.GetStatistics()
	if stats.TotalDecisions != 2 || stats.FailedDecisions != 2 {
		t.Errorf("Unexpected statistics: %+v", stats)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	fens := []string{
		position.StartFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/3PP3/5N2/PPP2PPP/RNBQKB1R b KQkq - 0 3",
		"4k3/8/8/3p4/8/8/4P3/4K3 w - - 0 1",
	}

	for _, fen := range fens {
		p := position.MustParse(fen)

		seq := newEngine(t, eval.NewMaterial(), 2)
		want, err := seq.SelectMove(p, p.Turn())
		if err != nil {
			t.Fatalf("sequential SelectMove failed: %v", err)
		}

		config := DefaultConfig()
		config.MaxDepth = 2
		config.Parallel = true
		config.Workers = 4
		par := NewEngine(search.NewEngine(eval.NewMaterial()), config, zaptest.NewLogger(t))
		got, err := par.SelectMove(p, p.Turn())
		if err != nil {
			t.Fatalf("parallel SelectMove failed: %v", err)
		}

		if got.Move != want.Move || got.Score != want.Score || got.Depth != want.Depth {
			t.Errorf("%s: parallel %s %v@%d, sequential %s %v@%d",
				fen, got.Move, got.Score, got.Depth, want.Move, want.Score, want.Depth)
		}
		if got.Nodes != want.Nodes {
			t.Errorf("%s: parallel visited %d nodes, sequential %d", fen, got.Nodes, want.Nodes)
		}
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		depth := 1 + i%3
		tree := pt.NewTree(pt.Random(rng, depth, 4), position.Color(i%2))
		root := tree.Root()

		seq := newEngine(t, tree.Evaluator(), depth)
		want, err := seq.SelectMove(root, root.Turn())
		if err != nil {
			t.Fatalf("tree %d: sequential SelectMove failed: %v", i, err)
		}

		config := DefaultConfig()
		config.MaxDepth = depth
		config.Parallel = true
		config.Workers = 3
		par := NewEngine(search.NewEngine(tree.Evaluator()), config, nil)
		got, err := par.SelectMove(root, root.Turn())
		if err != nil {
			t.Fatalf("tree %d: parallel SelectMove failed: %v", i, err)
		}

		if got.Move != want.Move || got.Score != want.Score || got.Depth != want.Depth {
			t.Errorf("tree %d: parallel %s %v@%d, sequential %s %v@%d",
				i, got.Move, got.Score, got.Depth, want.Move, want.Score, want.Depth)
		}
	}
}

type countingFlusher struct {
	calls int
	err   error
}

func (f *countingFlusher) Flush() (int, error) {
	f.calls++
	return 1, f.err
}

func TestFlushAndHistory(t *testing.T) {
	f := &countingFlusher{}
	e := newEngine(t, eval.NewMaterial(), 1).WithFlusher(f)

	p := position.Start()
	for i := 0; i < 3; i++ {
		if _, err := e.SelectMove(p, position.White); err != nil {
			t.Fatalf("SelectMove failed: %v", err)
		}
	}
	if f.calls != 3 {
		t.Errorf("Expected 3 flushes, got %d", f.calls)
	}

	// A failing flush is logged, not returned.
	f.err = errors.New("disk full")
	if _, err := e.SelectMove(p, position.White); err != nil {
		t.Errorf("Flush failure should not fail the decision: %v", err)
	}

	history := e.GetHistory(10)
	if len(history) != 4 {
		t.Fatalf("Expected 4 decisions in history, got %d", len(history))
	}
	stats := e.GetStatistics()
	if stats.TotalDecisions != 4 || stats.FailedDecisions != 0 || stats.TotalNodes == 0 {
		t.Errorf("Unexpected statistics: %+v", stats)
	}
}

func TestSelectMoveWithPersistentCache(t *testing.T) {
	cache, err := storage.NewEvalCache(filepath.Join(t.TempDir(), "evals.db"))
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	defer cache.Close()

	p := position.MustParse("r1bqkbnr/pppp1ppp/2n5/4p3/3PP3/5N2/PPP2PPP/RNBQKB1R b KQkq - 0 3")

	first := eval.NewCached(eval.NewMaterial(), cache, "material")
	e := newEngine(t, first, 2).WithFlusher(first)
	want, err := e.SelectMove(p, p.Turn())
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}

	if cache.Pending() != 0 {
		t.Errorf("Expected cache flushed after the decision, %d pending", cache.Pending())
	}
	count, err := cache.Count()
	if err != nil || count == 0 {
		t.Fatalf("Expected cached evaluations, got %d (%v)", count, err)
	}

	// A fresh memo over the same store answers every leaf from disk.
	second := eval.NewCached(eval.NewMaterial(), cache, "material")
	got, err := newEngine(t, second, 2).WithFlusher(second).SelectMove(p, p.Turn())
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if got.Move != want.Move || got.Score != want.Score {
		t.Errorf("Cached decision %s %v differs from %s %v", got.Move, got.Score, want.Move, want.Score)
	}
	if _, misses := second.Stats(); misses != 0 {
		t.Errorf("Expected no evaluator calls through the warm cache, got %d", misses)
	}
}
