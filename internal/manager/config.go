package manager

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"wastesort/internal/artifact"
	"wastesort/internal/labels"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	DefaultInputSize = 224
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Logger zerolog.Logger
	// Candidates overrides the artifact search list entirely.
	Candidates []string
	// EnvModelDir is the value of TFJS_MODEL_DIR; it is searched first.
	EnvModelDir string
	// ModelDirs are configured directories searched after EnvModelDir.
	ModelDirs []string
	// DefaultLabels are used when the model ships no metadata labels.
	DefaultLabels []string
	// DefaultInputSize is used when the model does not declare its input size.
	DefaultInputSize int
	// ONNXLibraryPath points at the onnxruntime shared library.
	ONNXLibraryPath string
	Publisher       EventPublisher
	// Adapters defaults to the layers executor and the onnx adapter.
	Adapters []RuntimeAdapter
	// Source defaults to the filesystem locator and loader.
	Source ArtifactSource
}

// ArtifactSource finds and reads model artifacts.
type ArtifactSource interface {
	Locate(candidates []string) (string, error)
	Load(dir string) (*artifact.Artifacts, error)
	Metadata(dir string) (*artifact.Metadata, error)
}

type fsSource struct{}

func (fsSource) Locate(c []string) (string, error)               { return artifact.Locate(c) }
func (fsSource) Load(dir string) (*artifact.Artifacts, error)    { return artifact.Load(dir) }
func (fsSource) Metadata(dir string) (*artifact.Metadata, error) { return artifact.LoadMetadata(dir) }

// FileSource returns the filesystem-backed ArtifactSource.
func FileSource() ArtifactSource { return fsSource{} }

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:         StateNotLoaded,
		log:           cfg.Logger.With().Str("component", "manager").Logger(),
		candidates:    cfg.Candidates,
		defaultLabels: cfg.DefaultLabels,
		inputSize:     cfg.DefaultInputSize,
		adapters:      cfg.Adapters,
		source:        cfg.Source,
		publisher:     cfg.Publisher,
		onnxLibPath:   cfg.ONNXLibraryPath,
	}
	if len(m.candidates) == 0 {
		cwd, _ := os.Getwd()
		exeDir := ""
		if exe, err := os.Executable(); err == nil {
			exeDir = filepath.Dir(exe)
		}
		m.candidates = artifact.Candidates(cfg.EnvModelDir, cfg.ModelDirs, cwd, exeDir)
	}
	if len(m.defaultLabels) == 0 {
		m.defaultLabels = labels.DefaultLabels()
	}
	if m.inputSize <= 0 {
		m.inputSize = DefaultInputSize
	}
	if m.adapters == nil {
		m.adapters = []RuntimeAdapter{NewGraphAdapter(m.log), NewONNXAdapter(cfg.ONNXLibraryPath, m.log)}
	}
	if m.source == nil {
		m.source = fsSource{}
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.startTime = time.Now()
	return m
}
