package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wastesort/internal/errs"
	"wastesort/internal/manager"
	"wastesort/internal/preprocess"
	"wastesort/pkg/types"
)

// EstimatedWeightKg is reported until a weight estimator exists.
const EstimatedWeightKg = 0.2

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Classify(ctx context.Context, in types.ClassifyInput) (*manager.Classification, error)
	EnsureLoaded(ctx context.Context) (*manager.LoadedModel, error)
	Invalidate() bool
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/classify", classifyHandler(svc))

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/model/load", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		if refuseIfShuttingDown(w) {
			logEnd(r, lvl, "model load", http.StatusServiceUnavailable, start, nil)
			return
		}
		if _, err := svc.EnsureLoaded(r.Context()); err != nil {
			// client went away; nobody is left to answer
			if r.Context().Err() != nil {
				return
			}
			status := statusFor(err)
			writeError(w, status, err.Error(), errs.KindOf(err))
			logEnd(r, lvl, "model load", status, start, err)
			return
		}
		writeJSON(w, http.StatusOK, svc.Status())
		logEnd(r, lvl, "model load", http.StatusOK, start, nil)
	})

	r.Delete("/model", func(w http.ResponseWriter, r *http.Request) {
		svc.Invalidate()
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// classifyHandler godoc
//
//	@Summary		Classify a waste image
//	@Description	Accepts a multipart upload (field "image") or a JSON body with a base64 image.
//	@Tags			classify
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			body	body		types.ClassifyRequest	false	"JSON payload"
//	@Success		200		{object}	types.ClassifyResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		413		{object}	types.ErrorResponse
//	@Failure		415		{object}	types.ErrorResponse
//	@Failure		422		{object}	types.ErrorResponse
//	@Failure		503		{object}	types.ErrorResponse
//	@Router			/classify [post]
func classifyHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)

		if refuseIfShuttingDown(w) {
			logEnd(r, lvl, "classify", http.StatusServiceUnavailable, start, nil)
			return
		}
		in, status, err := readClassifyInput(w, r)
		if err != nil {
			incrementRejected(http.StatusText(status))
			writeError(w, status, err.Error(), errs.KindOf(err))
			logEnd(r, lvl, "classify", status, start, err)
			return
		}
		if lvl >= LevelDebug {
			zlog.Debug().Str("image", in.Name).Str("mime", in.MimeType).Int("bytes", len(in.Image)).Msg("classify start")
		}

		ctx := r.Context()
		if classifyTimeout > 0 {
			var cancelT context.CancelFunc
			ctx, cancelT = context.WithTimeout(ctx, classifyTimeout)
			defer cancelT()
		}
		res, err := svc.Classify(ctx, in)
		if err != nil {
			// client went away; nobody is left to answer
			if r.Context().Err() != nil {
				return
			}
			status := statusFor(err)
			writeError(w, status, err.Error(), errs.KindOf(err))
			logEnd(r, lvl, "classify", status, start, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(res, in))
		logEnd(r, lvl, "classify", http.StatusOK, start, nil)
	}
}

// readClassifyInput extracts the image from a multipart or JSON request.
// The returned status is meaningful only when err is non-nil.
func readClassifyInput(w http.ResponseWriter, r *http.Request) (types.ClassifyInput, int, error) {
	var in types.ClassifyInput
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	switch mt {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return in, bodyStatus(err), errs.Wrap(errs.BadRequest, "invalid multipart body", err)
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			return in, http.StatusBadRequest, errs.New(errs.BadRequest, "image file is required")
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return in, http.StatusBadRequest, errs.Wrap(errs.BadRequest, "read image", err)
		}
		in.Image = b
		in.MimeType = hdr.Header.Get("Content-Type")
		in.Name = hdr.Filename
		if v := r.FormValue("imageName"); v != "" {
			in.Name = v
		}
	case "application/json":
		var req types.ClassifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return in, bodyStatus(err), errs.New(errs.BadRequest, "invalid JSON body")
		}
		if strings.TrimSpace(req.ImageBase64) == "" {
			return in, http.StatusBadRequest, errs.New(errs.BadRequest, "imageBase64 is required")
		}
		b, err := preprocess.DecodeBase64(req.ImageBase64)
		if err != nil {
			return in, statusFor(err), err
		}
		in.Image = b
		in.MimeType = req.MimeType
		in.Name = req.ImageName
	default:
		return in, http.StatusUnsupportedMediaType,
			errs.New(errs.BadRequest, "Content-Type must be multipart/form-data or application/json")
	}
	return in, 0, nil
}

func bodyStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func toResponse(res *manager.Classification, in types.ClassifyInput) types.ClassifyResponse {
	mt := in.MimeType
	if mt == "" {
		mt = "image"
	}
	reason := fmt.Sprintf("Predicted by the local %s model (%s) with confidence %.1f%%. Location: %s",
		res.Backend, mt, res.Confidence*100, res.SourceDir)
	return types.ClassifyResponse{
		ItemType:           res.RawLabel,
		ModelLabel:         res.RawLabel,
		Category:           string(res.Category),
		Confidence:         res.Confidence,
		EstimatedWeightKg:  EstimatedWeightKg,
		RecommendedAction:  res.Action.Recommended,
		AlternativeActions: res.Action.Alternatives,
		Reason:             reason,
		ClassProbabilities: res.ClassProbabilities,
		ModelID:            res.ModelID,
		SoftmaxApplied:     res.SoftmaxApplied,
	}
}
