package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"wastesort/pkg/types"
)

// fileResult is one line of `classify` output.
type fileResult struct {
	File               string             `json:"file"`
	Category           string             `json:"category,omitempty"`
	ModelLabel         string             `json:"modelLabel,omitempty"`
	Confidence         float64            `json:"confidence"`
	SoftmaxApplied     bool               `json:"softmaxApplied,omitempty"`
	RecommendedAction  string             `json:"recommendedAction,omitempty"`
	ClassProbabilities map[string]float64 `json:"classProbabilities,omitempty"`
	Error              string             `json:"error,omitempty"`
}

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "classify FILE...",
		Short:   "Classify image files locally and print JSON lines",
		Example: "  wastesortd classify banana.jpg bottle.png",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.classifyFiles(cmd.Context(), args)
		},
	}
}

func (a *app) classifyFiles(ctx context.Context, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mgr := a.newManager(nil)
	defer mgr.Close()

	enc := json.NewEncoder(a.stdout)
	failed := 0
	for _, f := range files {
		r := fileResult{File: f}
		b, err := os.ReadFile(f)
		if err == nil {
			in := types.ClassifyInput{Image: b, MimeType: mime.TypeByExtension(filepath.Ext(f)), Name: filepath.Base(f)}
			res, cerr := mgr.Classify(ctx, in)
			if cerr == nil {
				r.Category = string(res.Category)
				r.ModelLabel = res.RawLabel
				r.Confidence = res.Confidence
				r.SoftmaxApplied = res.SoftmaxApplied
				r.RecommendedAction = res.Action.Recommended
				r.ClassProbabilities = res.ClassProbabilities
			}
			err = cerr
		}
		if err != nil {
			failed++
			r.Error = err.Error()
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}
