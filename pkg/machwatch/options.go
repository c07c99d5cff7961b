package machwatch

type options struct {
	modelPath  string
	kind       string
	runtimeLib string
	bounds     *Bounds
}

// Option configures a Monitor.
type Option func(*options)

// WithModel sets the classifier artifact: an exported .onnx model, or a
// .yaml/.json logistic model. Default: models/edge_model.onnx.
func WithModel(path string) Option {
	return func(o *options) {
		o.modelPath = path
	}
}

// WithModelKind forces the artifact kind ("onnx" or "logistic") instead of
// inferring it from the file extension.
func WithModelKind(kind string) Option {
	return func(o *options) {
		o.kind = kind
	}
}

// WithRuntimeLibrary sets the path of the ONNX Runtime shared library.
// Default: libonnxruntime.so next to the model.
func WithRuntimeLibrary(path string) Option {
	return func(o *options) {
		o.runtimeLib = path
	}
}

// WithBounds replaces the training-time normalization bounds. Only needed
// for models trained on a different range.
func WithBounds(b Bounds) Option {
	return func(o *options) {
		o.bounds = &b
	}
}

func defaultOptions() options {
	return options{modelPath: "models/edge_model.onnx"}
}
