package manager

import (
	"context"
	"time"

	"wastesort/internal/errs"
	"wastesort/internal/labels"
	"wastesort/internal/preprocess"
	"wastesort/internal/scores"
	"wastesort/internal/tensor"
	"wastesort/pkg/types"
)

// Classification is the reconciled result of one image plus the model that
// produced it.
type Classification struct {
	labels.Result
	ModelID        string
	Backend        string
	SourceDir      string
	SoftmaxApplied bool
	Action         labels.Action
}

// Classify runs the full pipeline for one image. Failures are scoped to
// this call; the cached model is never touched.
func (m *Manager) Classify(ctx context.Context, in types.ClassifyInput) (*Classification, error) {
	start := time.Now()
	res, err := m.classify(ctx, in)
	if err != nil {
		kind := errs.KindOf(err).String()
		classifyErrors.WithLabelValues(kind).Inc()
		ev := m.log.Error()
		if IsClientError(err) {
			ev = m.log.Info()
		}
		ev.Err(err).Str("kind", kind).Str("image", in.Name).Msg("classification failed")
		m.publish(EventClassifyError, "", map[string]any{"error": err.Error(), "kind": kind})
		return nil, err
	}
	took := time.Since(start)
	classifyDuration.Observe(took.Seconds())
	classifications.WithLabelValues(string(res.Category)).Inc()
	m.classified.Add(1)
	m.log.Debug().
		Str("model_id", res.ModelID).
		Str("label", res.RawLabel).
		Str("category", string(res.Category)).
		Float64("confidence", res.Confidence).
		Bool("softmax", res.SoftmaxApplied).
		Dur("took", took).
		Msg("classified")
	return res, nil
}

func (m *Manager) classify(ctx context.Context, in types.ClassifyInput) (*Classification, error) {
	if len(in.Image) == 0 {
		return nil, errs.New(errs.ImageDecodeError, "image is empty")
	}
	lm, err := m.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scope := tensor.NewScope(m.log)
	defer scope.Close()

	x, err := preprocess.Image(in.Image, in.MimeType, lm.InputWidth, lm.InputHeight, lm.Layout)
	if err != nil {
		return nil, err
	}
	scope.Track(x)

	raw, err := execute(lm, x, scope)
	if err != nil {
		return nil, err
	}
	probs, applied := scores.Normalize(raw)
	r := labels.Reconcile(lm.Labels, probs)
	return &Classification{
		Result:         r,
		ModelID:        lm.ID,
		Backend:        lm.Backend,
		SourceDir:      lm.SourceDir,
		SoftmaxApplied: applied,
		Action:         labels.ActionFor(r.Category),
	}, nil
}
