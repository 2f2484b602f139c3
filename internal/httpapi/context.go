package httpapi

import (
	"context"
	"net/http"

	"wastesort/internal/errs"
)

// serverBaseCtx is canceled when the process starts shutting down.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// refuseIfShuttingDown answers 503 once the base context is done. Requests
// already inside a handler are left to finish; http.Server.Shutdown waits
// for them.
func refuseIfShuttingDown(w http.ResponseWriter) bool {
	if serverBaseCtx.Err() == nil {
		return false
	}
	w.Header().Set("Connection", "close")
	writeError(w, http.StatusServiceUnavailable, "server is shutting down", errs.KindUnknown)
	return true
}
