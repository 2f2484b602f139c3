package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Metadata is the optional side file shipped next to the topology.
type Metadata struct {
	Labels     []string `json:"labels"`
	Classes    []string `json:"classes"`
	ClassNames []string `json:"class_names"`
	ImageSize  int      `json:"imageSize"`
	ModelName  string   `json:"modelName"`
}

// ClassLabels returns the first non-empty label list among labels,
// classes and class_names.
func (m *Metadata) ClassLabels() []string {
	if m == nil {
		return nil
	}
	for _, l := range [][]string{m.Labels, m.Classes, m.ClassNames} {
		if len(l) > 0 {
			return append([]string(nil), l...)
		}
	}
	return nil
}

// LoadMetadata reads metadata.json from dir.
func LoadMetadata(dir string) (*Metadata, error) {
	p := filepath.Join(dir, MetadataFile)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", p, err)
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", p, err)
	}
	return &m, nil
}
