package manager

import (
	"errors"
	"os"

	"wastesort/internal/artifact"
)

// SanityReport describes what a load would find, without loading.
type SanityReport struct {
	ModelDir         string   `json:"model_dir,omitempty"`
	Format           string   `json:"format,omitempty"`
	MetadataPresent  bool     `json:"metadata_present"`
	Labels           []string `json:"labels,omitempty"`
	ONNXRuntimeBuilt bool     `json:"onnxruntime_built"`
	Error            string   `json:"error,omitempty"`
}

// SanityCheck locates the artifacts and reads their metadata. It does not
// mutate state and is safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{ONNXRuntimeBuilt: onnxBuilt}
	dir, err := m.source.Locate(m.candidates)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.ModelDir = dir
	md, err := m.source.Metadata(dir)
	switch {
	case err == nil:
		r.MetadataPresent = true
	case !errors.Is(err, os.ErrNotExist):
		r.Error = err.Error()
	}
	r.Labels = m.resolveLabels(md)
	r.Format = artifact.FormatOf(dir)
	if r.Format != "" && m.adapterFor(r.Format) == nil && r.Error == "" {
		r.Error = "no runtime adapter for " + r.Format + " artifacts"
	}
	return r
}
