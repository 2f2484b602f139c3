//go:build onnxruntime

package manager

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"wastesort/internal/artifact"
	"wastesort/internal/errs"
	"wastesort/internal/tensor"
)

// onnxBuilt indicates this binary was compiled with onnxruntime support.
const onnxBuilt = true

var (
	ortMu    sync.Mutex
	ortReady bool
	// ortInitialize is swapped in tests.
	ortInitialize = func() error { return ort.InitializeEnvironment() }
)

// initORT initializes the process-wide onnxruntime environment. Only success
// is remembered, so a later call can pick up a library installed since.
func initORT(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortReady || ort.IsInitialized() {
		ortReady = true
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ortInitialize(); err != nil {
		return err
	}
	ortReady = true
	return nil
}

type onnxAdapter struct {
	libPath string
	log     zerolog.Logger
}

// NewONNXAdapter returns the adapter for model.onnx artifacts. libPath
// points at the onnxruntime shared library; empty uses the loader default.
func NewONNXAdapter(libPath string, log zerolog.Logger) RuntimeAdapter {
	return &onnxAdapter{libPath: libPath, log: log}
}

func (a *onnxAdapter) Name() string { return "onnx" }

func (a *onnxAdapter) Supports(format string) bool { return format == artifact.FormatONNX }

func (a *onnxAdapter) Build(art *artifact.Artifacts) (RuntimeModel, error) {
	if err := initORT(a.libPath); err != nil {
		return nil, errs.Wrap(errs.DependencyUnavailable, "initialize onnxruntime", err)
	}
	ins, outs, err := ort.GetInputOutputInfoWithONNXData(art.ONNX)
	if err != nil {
		return nil, errs.WithPath(errs.ArtifactCorrupt, art.Dir, "read onnx inputs and outputs", err)
	}
	if len(ins) != 1 || len(outs) == 0 {
		return nil, errs.WithPath(errs.ArtifactCorrupt, art.Dir,
			fmt.Sprintf("onnx model has %d inputs and %d outputs; want 1 input", len(ins), len(outs)), nil)
	}
	in := ins[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return nil, errs.WithPath(errs.ArtifactCorrupt, art.Dir, "onnx input "+in.Name+" is not float32", nil)
	}

	m := &onnxModel{inputName: in.Name, layout: tensor.NHWC, log: a.log}
	dims := in.Dimensions
	if len(dims) == 4 && dims[1] == 3 && dims[3] != 3 {
		m.layout = tensor.NCHW
	}
	if len(dims) > 1 {
		m.shape = make([]int, len(dims)-1)
		for i, d := range dims[1:] {
			m.shape[i] = -1
			if d > 0 {
				m.shape[i] = int(d)
			}
		}
	}
	for _, o := range outs {
		m.outputNames = append(m.outputNames, o.Name)
	}
	m.session, err = ort.NewDynamicAdvancedSessionWithONNXData(art.ONNX, []string{in.Name}, m.outputNames, nil)
	if err != nil {
		return nil, errs.WithPath(errs.ArtifactCorrupt, art.Dir, "create onnx session", err)
	}
	a.log.Info().
		Str("input", in.Name).
		Str("input_shape", in.Dimensions.String()).
		Strs("outputs", m.outputNames).
		Str("layout", m.layout.String()).
		Msg("onnx model ready")
	return m, nil
}

type onnxModel struct {
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputNames []string
	shape       []int
	layout      tensor.Layout
	log         zerolog.Logger
}

func (m *onnxModel) InputShape() []int { return append([]int(nil), m.shape...) }

func (m *onnxModel) Layout() tensor.Layout { return m.layout }

func (m *onnxModel) Predict(in *tensor.Tensor) ([]*tensor.Tensor, error) {
	dims := make([]int64, in.Rank())
	for i := range dims {
		dims[i] = int64(in.Dim(i))
	}
	x, err := ort.NewTensor(ort.NewShape(dims...), in.Data())
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer x.Destroy()

	outputs := make([]ort.Value, len(m.outputNames))
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	if err := m.session.Run([]ort.Value{x}, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	return convertOutputs(outputs, func(i int, v ort.Value) (*tensor.Tensor, error) {
		ft, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %s is not a float32 tensor", m.outputNames[i])
		}
		s := ft.GetShape()
		shape := make([]int, len(s))
		for j, d := range s {
			shape[j] = int(d)
		}
		return tensor.FromSlice(ft.GetData(), shape...)
	}, m.log)
}

func (m *onnxModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
