// Package manager owns the loaded classification model and the pipeline that
// runs an image through it. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: State, LoadedModel and Snapshot.
//   - errors.go: error helpers on top of internal/errs.
//   - helpers.go: input size and label resolution.
//   - ensure.go: EnsureLoaded, the single-flight model cache.
//   - unload.go: Invalidate and Close.
//   - execute.go: runs one input tensor through the loaded model.
//   - classify.go: Classify, the end-to-end pipeline.
//   - status_report.go: Status/Snapshot reporting helpers.
//   - sanity.go: dependency and artifact checks that do not load anything.
//   - ops.go: background preload.
//   - events.go, eventpub_memory.go: lifecycle events and an in-memory sink.
//   - metrics.go: Prometheus collectors for loads and classifications.
//
// Build tags and runtimes:
//
//   - Layers models (model.json) run on the pure-Go executor in internal/graph.
//     Always available: adapter_graph.go.
//
//   - ONNX models (model.onnx) run on onnxruntime through
//     github.com/yalue/onnxruntime_go. Enabled with `-tags=onnxruntime`.
//     Files: adapter_onnx.go. A stub that reports the dependency as
//     unavailable is compiled without the tag: adapter_onnx_stub.go.
//
// External packages should use public methods only (New/NewWithConfig,
// EnsureLoaded, Classify, Status, Ready, Invalidate, Close).
package manager
