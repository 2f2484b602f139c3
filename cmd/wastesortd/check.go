package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wastesort/internal/manager"
)

func newCheckCmd(a *app) *cobra.Command {
	var noLoad bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Locate and load the model, then print what was found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.check(cmd.Context(), noLoad)
		},
	}
	cmd.Flags().BoolVar(&noLoad, "no-load", false, "Only locate artifacts and read metadata")
	return cmd
}

func (a *app) check(ctx context.Context, noLoad bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	pub := manager.NewMemoryPublisher()
	mgr := a.newManager(pub)
	defer mgr.Close()

	w := a.stdout
	r := mgr.SanityCheck()
	fmt.Fprintln(w, "search path:")
	for _, c := range mgr.Candidates() {
		mark := " "
		if c == r.ModelDir {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, c)
	}
	fmt.Fprintf(w, "onnxruntime built: %v\n", r.ONNXRuntimeBuilt)
	if r.Error != "" {
		return fmt.Errorf("sanity check: %s", r.Error)
	}
	fmt.Fprintf(w, "model dir: %s\nformat: %s\nmetadata: %v\n", r.ModelDir, r.Format, r.MetadataPresent)
	if noLoad {
		fmt.Fprintf(w, "labels: %s\n", strings.Join(r.Labels, ", "))
		return nil
	}

	lm, err := mgr.EnsureLoaded(ctx)
	for _, e := range pub.Events() {
		fmt.Fprintf(w, "event: %s %v\n", e.Name, e.Fields)
	}
	if err != nil {
		if manager.IsDependencyUnavailable(err) {
			fmt.Fprintln(w, "hint: onnx models need a binary built with -tags onnxruntime and onnx_library_path set")
		}
		return err
	}
	fmt.Fprintf(w, "model id: %s\nbackend: %s\ninput: %dx%d %s\nlabels: %s\nload time: %s\n",
		lm.ID, lm.Backend, lm.InputWidth, lm.InputHeight, lm.Layout, strings.Join(lm.Labels, ", "), lm.LoadTime)
	return nil
}
