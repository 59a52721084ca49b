package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXMetadata describes the tensors of an exported network. It lives next
// to the model as <name>_metadata.json.
type ONNXMetadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

// ONNXNetwork evaluates a network through the ONNX runtime shared library.
type ONNXNetwork struct {
	session      *ort.AdvancedSession
	Metadata     ONNXMetadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// MetadataPath returns the sidecar path for an ONNX model.
func MetadataPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + "_metadata.json"
}

// NewONNXNetwork loads modelPath. libPath, when set, points at the
// onnxruntime shared library.
func NewONNXNetwork(modelPath, libPath string) (*ONNXNetwork, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	metaFile, err := os.ReadFile(MetadataPath(modelPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata ONNXMetadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if metadata.InputName == "" {
		metadata.InputName = "input"
	}
	if metadata.OutputName == "" {
		metadata.OutputName = "output"
	}
	if len(metadata.InputShape) == 0 || len(metadata.OutputShape) == 0 {
		return nil, fmt.Errorf("metadata must declare input_shape and output_shape")
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXNetwork{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict copies features into the input tensor, runs the session and
// returns the first output value.
func (n *ONNXNetwork) Predict(features []float64) (float64, error) {
	in := n.inputTensor.GetData()
	if len(features) != len(in) {
		return 0, fmt.Errorf("input has %d values, network expects %d", len(features), len(in))
	}
	for i, v := range features {
		in[i] = float32(v)
	}

	if err := n.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	out := n.outputTensor.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("network produced no output")
	}
	return float64(out[0]), nil
}

func (n *ONNXNetwork) Close() error {
	if n.inputTensor != nil {
		n.inputTensor.Destroy()
	}
	if n.outputTensor != nil {
		n.outputTensor.Destroy()
	}
	if n.session != nil {
		n.session.Destroy()
	}
	return ort.DestroyEnvironment()
}
