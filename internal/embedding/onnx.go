//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs an image encoder with ONNX Runtime. It requires CGO and the
// onnxruntime shared library.
type ONNXEmbedder struct {
	session *ort.AdvancedSession
	cfg     ONNXConfig

	// Pre-allocated tensors for Run(); we update input data and read output.
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	cfg.applyDefaults()
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model not found: %w", err)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	size := int64(cfg.ImageSize)
	inputData := make([]float32, 3*size*size)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, size, size), inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tensor: %w", cfg.InputName, err)
	}
	outputData := make([]float32, cfg.Dimensions)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(cfg.Dimensions)), outputData)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:      session,
		cfg:          cfg,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Embed decodes the image at path, preprocesses it and runs the model.
func (e *ONNXEmbedder) Embed(ctx context.Context, path string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	pixels := PixelValues(img, e.cfg.ImageSize, e.cfg.Mean, e.cfg.Std)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("embedder closed")
	}

	copy(e.inputTensor.GetData(), pixels)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputData := e.outputTensor.GetData()
	embedding := make([]float32, e.cfg.Dimensions)
	copy(embedding, outputData[:e.cfg.Dimensions])
	return embedding, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		_ = e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}
