// Package positiontest provides hand-built game trees for testing search code
// against known answers.
package positiontest

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/thyrook/abeval/internal/eval"
	"github.com/thyrook/abeval/internal/position"
)

// Node is one position in a synthetic tree. Moves are the child names.
type Node struct {
	Name     string
	Status   position.Status
	Score    float64
	Children []*Node

	turn position.Color
}

// Leaf is an ongoing position without children, scored statically.
func Leaf(name string, score float64) *Node {
	return &Node{Name: name, Score: score}
}

// Mate is a position in which the side to move is checkmated.
func Mate(name string) *Node {
	return &Node{Name: name, Status: position.Checkmate}
}

// Draw is a stalemate.
func Draw(name string) *Node {
	return &Node{Name: name, Status: position.Stalemate}
}

// Branch is an ongoing position with the given successors in move order.
func Branch(name string, score float64, children ...*Node) *Node {
	return &Node{Name: name, Score: score, Children: children}
}

// Tree is an immutable game tree. Turns alternate from the root.
type Tree struct {
	root   *Node
	byName map[string]*Node
}

// NewTree indexes root and assigns turns, starting with turn at the root.
// Node names must be unique.
func NewTree(root *Node, turn position.Color) *Tree {
	t := &Tree{root: root, byName: make(map[string]*Node)}
	var walk func(n *Node, c position.Color)
	walk = func(n *Node, c position.Color) {
		if _, dup := t.byName[n.Name]; dup {
			panic(fmt.Sprintf("duplicate node name %q", n.Name))
		}
		n.turn = c
		t.byName[n.Name] = n
		for _, child := range n.Children {
			walk(child, c.Other())
		}
	}
	walk(root, turn)
	return t
}

// Root returns the root position.
func (t *Tree) Root() position.Position {
	return Pos{tree: t, node: t.root}
}

// Node returns a node by name.
func (t *Tree) Node(name string) *Node {
	return t.byName[name]
}

// Pos is a position within a Tree.
type Pos struct {
	tree *Tree
	node *Node
}

func (p Pos) LegalMoves() []position.Move {
	moves := make([]position.Move, len(p.node.Children))
	for i, c := range p.node.Children {
		moves[i] = position.Move(c.Name)
	}
	return moves
}

func (p Pos) Apply(m position.Move) (position.Position, error) {
	for _, c := range p.node.Children {
		if c.Name == string(m) {
			return Pos{tree: p.tree, node: c}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s from %s", position.ErrIllegalMove, m, p.node.Name)
}

func (p Pos) Status() position.Status { return p.node.Status }
func (p Pos) Turn() position.Color    { return p.node.turn }
func (p Pos) Snapshot() string        { return p.node.Name }

// Evaluator scores tree positions with their static Score and counts calls.
type Evaluator struct {
	tree  *Tree
	calls atomic.Int64

	mu     sync.Mutex
	failOn map[string]error
	seen   []string
}

// Evaluator returns a fresh evaluator over the tree.
func (t *Tree) Evaluator() *Evaluator {
	return &Evaluator{tree: t, failOn: make(map[string]error)}
}

// FailOn makes evaluating the named node return err.
func (e *Evaluator) FailOn(name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOn[name] = err
}

// Evaluate implements eval.Evaluator.
func (e *Evaluator) Evaluate(p position.Position) (float64, error) {
	e.calls.Add(1)
	if score, ok := eval.Terminal(p); ok {
		return score, nil
	}

	name := p.Snapshot()

	e.mu.Lock()
	e.seen = append(e.seen, name)
	err := e.failOn[name]
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}

	n, ok := e.tree.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown node %q", position.ErrInvalidPosition, name)
	}
	return n.Score, nil
}

// Calls returns the number of Evaluate calls.
func (e *Evaluator) Calls() int64 {
	return e.calls.Load()
}

// Seen returns the non-terminal nodes evaluated, in call order.
func (e *Evaluator) Seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.seen))
	copy(out, e.seen)
	return out
}

// Random builds a tree of the given depth with 1 to maxBranch children per
// node. Some inner nodes are replaced by mates or draws. Scores are small
// integers so ties happen often.
func Random(rng *rand.Rand, depth, maxBranch int) *Node {
	var build func(name string, d int) *Node
	build = func(name string, d int) *Node {
		if d > 0 {
			switch r := rng.Intn(20); {
			case r == 0:
				return Mate(name)
			case r == 1:
				return Draw(name)
			}
		}
		score := float64(rng.Intn(11) - 5)
		if d == depth {
			return Leaf(name, score)
		}
		n := Branch(name, score)
		branches := 1 + rng.Intn(maxBranch)
		for i := 0; i < branches; i++ {
			n.Children = append(n.Children, build(fmt.Sprintf("%s.%d", name, i), d+1))
		}
		return n
	}
	return build("root", 0)
}
