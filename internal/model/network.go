package model

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DefaultHiddenSizes is the layer layout used when none is configured.
var DefaultHiddenSizes = []int{180, 180, 180}

// ValueNet is a feed-forward network mapping a position feature vector to a
// single evaluation in pawn units from White's perspective.
type ValueNet struct {
	mu sync.Mutex

	// Graph
	g *gorgonia.ExprGraph

	// Input
	input *gorgonia.Node

	// Dense layers, weight then bias for each layer
	params []*gorgonia.Node

	// Output
	output *gorgonia.Node

	// VM for execution
	vm gorgonia.VM

	// Configuration
	inputSize   int
	hiddenSizes []int
}

// header is written ahead of the weights so a file can only be loaded into a
// network of the same shape.
type header struct {
	InputSize   int
	HiddenSizes []int
}

// NewValueNet creates a network with freshly initialised weights
func NewValueNet(inputSize int, hiddenSizes []int) (*ValueNet, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("invalid input size: %d", inputSize)
	}
	for _, h := range hiddenSizes {
		if h <= 0 {
			return nil, fmt.Errorf("invalid hidden layer size: %d", h)
		}
	}

	g := gorgonia.NewGraph()

	input := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(1, inputSize), gorgonia.WithName("input"))

	sizes := append(append([]int{inputSize}, hiddenSizes...), 1)
	params := make([]*gorgonia.Node, 0, 2*(len(sizes)-1))

	x := input
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]

		w := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(in, out), gorgonia.WithName(fmt.Sprintf("fc%d_w", i+1)), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
		b := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(out), gorgonia.WithName(fmt.Sprintf("fc%d_b", i+1)), gorgonia.WithInit(gorgonia.Zeroes()))

		x = gorgonia.Must(gorgonia.Mul(x, w))
		x = gorgonia.Must(gorgonia.BroadcastAdd(x, b, nil, []byte{0}))

		// Linear output layer
		if i < len(sizes)-2 {
			x = gorgonia.Must(gorgonia.Rectify(x))
		}

		params = append(params, w, b)
	}

	vm := gorgonia.NewTapeMachine(g)

	hidden := make([]int, len(hiddenSizes))
	copy(hidden, hiddenSizes)

	return &ValueNet{
		g:           g,
		input:       input,
		params:      params,
		output:      x,
		vm:          vm,
		inputSize:   inputSize,
		hiddenSizes: hidden,
	}, nil
}

// LoadValueNet builds a network from a weight file written by Save.
func LoadValueNet(path string) (*ValueNet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder := gob.NewDecoder(f)

	var h header
	if err := decoder.Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}

	net, err := NewValueNet(h.InputSize, h.HiddenSizes)
	if err != nil {
		return nil, err
	}

	if err := net.decodeWeights(decoder); err != nil {
		net.Close()
		return nil, err
	}

	return net, nil
}

// Predict performs inference on one feature vector. Safe for concurrent use.
func (vn *ValueNet) Predict(features []float64) (float64, error) {
	if len(features) != vn.inputSize {
		return 0, fmt.Errorf("invalid input size: expected %d, got %d", vn.inputSize, len(features))
	}

	backing := make([]float64, len(features))
	copy(backing, features)
	inputTensor := tensor.New(
		tensor.WithShape(1, vn.inputSize),
		tensor.WithBacking(backing),
	)

	vn.mu.Lock()
	defer vn.mu.Unlock()

	// Reset VM for next run
	defer vn.vm.Reset()

	if err := gorgonia.Let(vn.input, inputTensor); err != nil {
		return 0, fmt.Errorf("failed to set input: %w", err)
	}

	if err := vn.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("failed to run inference: %w", err)
	}

	outputValue := vn.output.Value()
	if outputValue == nil {
		return 0, fmt.Errorf("output is nil")
	}

	outputData, ok := outputValue.Data().([]float64)
	if !ok || len(outputData) != 1 {
		return 0, fmt.Errorf("unexpected output shape %v", outputValue.Shape())
	}

	v := outputData[0]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite output %v", v)
	}

	return v, nil
}

// InputSize returns the expected feature vector length
func (vn *ValueNet) InputSize() int {
	return vn.inputSize
}

// HiddenSizes returns a copy of the hidden layer layout
func (vn *ValueNet) HiddenSizes() []int {
	out := make([]int, len(vn.hiddenSizes))
	copy(out, vn.hiddenSizes)
	return out
}

// Learnables returns all learnable parameters
func (vn *ValueNet) Learnables() gorgonia.Nodes {
	return gorgonia.Nodes(vn.params)
}

// Save saves the layout and the model weights to a file
func (vn *ValueNet) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	vn.mu.Lock()
	defer vn.mu.Unlock()

	encoder := gob.NewEncoder(f)

	if err := encoder.Encode(header{InputSize: vn.inputSize, HiddenSizes: vn.hiddenSizes}); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	for _, node := range vn.params {
		val := node.Value()
		if val == nil {
			return fmt.Errorf("%s has no value", node.Name())
		}

		data := val.Data().([]float64)
		shape := val.Shape()

		if err := encoder.Encode(shape); err != nil {
			return fmt.Errorf("failed to encode %s shape: %w", node.Name(), err)
		}
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode %s data: %w", node.Name(), err)
		}
	}

	return f.Sync()
}

// Load replaces the weights with those in a file written by Save.
// The file layout must match this network.
func (vn *ValueNet) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder := gob.NewDecoder(f)

	var h header
	if err := decoder.Decode(&h); err != nil {
		return fmt.Errorf("failed to decode header: %w", err)
	}
	if h.InputSize != vn.inputSize || !equalSizes(h.HiddenSizes, vn.hiddenSizes) {
		return fmt.Errorf("layout mismatch: file has %d→%v, network has %d→%v",
			h.InputSize, h.HiddenSizes, vn.inputSize, vn.hiddenSizes)
	}

	return vn.decodeWeights(decoder)
}

func (vn *ValueNet) decodeWeights(decoder *gob.Decoder) error {
	vn.mu.Lock()
	defer vn.mu.Unlock()

	for _, node := range vn.params {
		var shape tensor.Shape
		var data []float64

		if err := decoder.Decode(&shape); err != nil {
			return fmt.Errorf("failed to decode %s shape: %w", node.Name(), err)
		}
		if err := decoder.Decode(&data); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", node.Name(), err)
		}
		if !shape.Eq(node.Shape()) {
			return fmt.Errorf("%s: shape %v does not match %v", node.Name(), shape, node.Shape())
		}

		t := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
		if err := gorgonia.Let(node, t); err != nil {
			return fmt.Errorf("failed to set weight: %w", err)
		}
	}

	return nil
}

// Close cleans up resources
func (vn *ValueNet) Close() error {
	vn.mu.Lock()
	defer vn.mu.Unlock()
	return vn.vm.Close()
}

// ModelExists checks if a model file exists
func ModelExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Fingerprint identifies the contents of a weight file. Retrained or
// replaced weights get a different fingerprint.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

func equalSizes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
