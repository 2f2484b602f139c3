package types

// ClassifyRequest is the JSON body accepted by POST /classify. Multipart
// uploads use the "image" form field instead.
type ClassifyRequest struct {
	// Base64-encoded image bytes. A data URL prefix is accepted.
	// example: data:image/jpeg;base64,/9j/4AAQSkZJRgABAQ...
	ImageBase64 string `json:"imageBase64" example:"data:image/jpeg;base64,/9j/4AAQSkZJRgABAQ..."`
	// MIME type of the image, used for error messages only.
	// example: image/jpeg
	MimeType string `json:"mimeType,omitempty" example:"image/jpeg"`
	// Original file name, used in logs.
	// example: banana-peel.jpg
	ImageName string `json:"imageName,omitempty" example:"banana-peel.jpg"`
}

// ClassifyResponse is returned by POST /classify.
type ClassifyResponse struct {
	// Item description; the raw model label.
	// example: Biodegradable
	ItemType string `json:"itemType" example:"Biodegradable"`
	// Raw label the model produced for the top class.
	// example: Biodegradable
	ModelLabel string `json:"modelLabel" example:"Biodegradable"`
	// Canonical category.
	// example: biodegradable
	Category string `json:"category" example:"biodegradable" enums:"biodegradable,recyclable,hazardous"`
	// Probability of the top class, rounded to 4 decimals.
	// example: 0.659
	Confidence float64 `json:"confidence" example:"0.659"`
	// Placeholder weight estimate in kilograms.
	// example: 0.2
	EstimatedWeightKg float64 `json:"estimatedWeightKg" example:"0.2"`
	// Recommended disposal action for the category.
	RecommendedAction string `json:"recommendedAction"`
	// Alternative disposal actions.
	AlternativeActions []string `json:"alternativeActions"`
	// Short explanation of the decision.
	Reason string `json:"reason"`
	// Per-class probabilities keyed by label.
	ClassProbabilities map[string]float64 `json:"classProbabilities"`
	// Identifier of the loaded model that produced the result.
	// example: 3f1d8a8e-5a0c-4c5e-9a51-2d8b1f0b6c1e
	ModelID string `json:"modelId" example:"3f1d8a8e-5a0c-4c5e-9a51-2d8b1f0b6c1e"`
	// True when softmax was applied to raw logits.
	SoftmaxApplied bool `json:"softmaxApplied"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// Machine-readable error kind.
	// example: image_decode_error
	Kind string `json:"kind,omitempty" example:"image_decode_error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ModelStatus describes the cached model, if any.
type ModelStatus struct {
	// example: 3f1d8a8e-5a0c-4c5e-9a51-2d8b1f0b6c1e
	ID string `json:"id" example:"3f1d8a8e-5a0c-4c5e-9a51-2d8b1f0b6c1e"`
	// Directory the artifacts were loaded from.
	// example: /srv/models/My image model
	SourceDir string `json:"source_dir" example:"/srv/models/My image model"`
	// Runtime that executes the model.
	// example: layers
	Backend string `json:"backend" example:"layers"`
	// Class labels in model output order.
	Labels []string `json:"labels"`
	// example: 224
	InputHeight int `json:"input_height" example:"224"`
	// example: 224
	InputWidth int `json:"input_width" example:"224"`
	// Tensor layout fed to the model.
	// example: NHWC
	Layout string `json:"layout" example:"NHWC"`
	// Unix time of the successful load.
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
	// Wall time the load took in milliseconds.
	// example: 850
	LoadMillis int64 `json:"load_ms" example:"850"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Cache state: not_loaded, loading or ready.
	// example: ready
	State string `json:"state" example:"ready"`
	// Present when a model is cached.
	Model *ModelStatus `json:"model,omitempty"`
	// Error from the most recent failed load, cleared by the next success.
	LastError string `json:"last_error,omitempty"`
	// Directories searched for artifacts, in order.
	Candidates []string `json:"candidates,omitempty"`
	// Successful loads since start.
	// example: 1
	LoadsTotal uint64 `json:"loads_total" example:"1"`
	// Failed loads since start.
	// example: 0
	LoadFailuresTotal uint64 `json:"load_failures_total" example:"0"`
	// Classifications served since start.
	// example: 42
	ClassificationsTotal uint64 `json:"classifications_total" example:"42"`
	// Resident set size of the process in bytes, when available.
	// example: 268435456
	ProcessRSSBytes uint64 `json:"process_rss_bytes,omitempty" example:"268435456"`
	// Available system memory in bytes, when available.
	// example: 4294967296
	SystemAvailableBytes uint64 `json:"system_available_bytes,omitempty" example:"4294967296"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
