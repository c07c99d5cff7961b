package predictor

import (
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/machwatch/internal/model"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNX runs an exported binary classifier through ONNX Runtime. The model
// must take one float tensor shaped [N, 3] and produce a label tensor: int64
// [N] (sklearn-onnx "output_label"), or float [N] / [N, 1] holding the
// failure probability.
type ONNX struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	outputType ort.TensorElementDataType
	outputRank int
}

// NewONNX loads the model at modelPath. When libPath is empty the runtime
// library is expected alongside the model as libonnxruntime.so.
func NewONNX(modelPath, libPath string) (*ONNX, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected 1 model input, got %d", len(inputs))
	}
	in := inputs[0]
	if len(in.Dimensions) != 2 || in.Dimensions[1] != 3 {
		return nil, fmt.Errorf("onnx: expected input shaped [N, 3], got %v", in.Dimensions)
	}
	out, err := pickLabelOutput(outputs)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNX{
		session:    session,
		inputName:  in.Name,
		outputName: out.Name,
		outputType: out.DataType,
		outputRank: len(out.Dimensions),
	}, nil
}

// pickLabelOutput selects the first tensor output usable as a label. Map and
// sequence outputs (sklearn's probability dictionaries) are skipped.
func pickLabelOutput(outputs []ort.InputOutputInfo) (ort.InputOutputInfo, error) {
	for _, o := range outputs {
		if o.OrtValueType != ort.ONNXTypeTensor {
			continue
		}
		switch o.DataType {
		case ort.TensorElementDataTypeInt64, ort.TensorElementDataTypeFloat:
			if len(o.Dimensions) == 1 || (len(o.Dimensions) == 2 && o.Dimensions[1] == 1) {
				return o, nil
			}
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("onnx: model has no int64 or float label output")
}

func (s *ONNX) Predict(batch [][3]float64) ([]model.Label, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	n := int64(len(batch))

	flat := make([]float32, 0, 3*len(batch))
	for _, x := range batch {
		flat = append(flat, float32(x[0]), float32(x[1]), float32(x[2]))
	}
	tIn, err := ort.NewTensor(ort.NewShape(n, 3), flat)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	outShape := ort.NewShape(n)
	if s.outputRank == 2 {
		outShape = ort.NewShape(n, 1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outputType == ort.TensorElementDataTypeInt64 {
		tOut, err := ort.NewEmptyTensor[int64](outShape)
		if err != nil {
			return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
		}
		defer tOut.Destroy()
		if err := s.session.Run([]ort.Value{tIn}, []ort.Value{tOut}); err != nil {
			return nil, fmt.Errorf("onnx: inference failed: %w", err)
		}
		labels := make([]model.Label, n)
		for i, v := range tOut.GetData() {
			l, err := model.ParseLabel(v)
			if err != nil {
				return nil, fmt.Errorf("onnx: %w", err)
			}
			labels[i] = l
		}
		return labels, nil
	}

	tOut, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()
	if err := s.session.Run([]ort.Value{tIn}, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}
	labels := make([]model.Label, n)
	for i, p := range tOut.GetData() {
		if p >= 0.5 {
			labels[i] = model.Failure
		}
	}
	return labels, nil
}

// Close releases the ONNX session.
func (s *ONNX) Close() error {
	return s.session.Destroy()
}
