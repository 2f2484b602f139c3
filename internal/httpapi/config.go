package httpapi

import "time"

// DefaultMaxBodyBytes bounds uploads when SetMaxBodyBytes was not called.
const DefaultMaxBodyBytes int64 = 10 << 20

// maxBodyBytes controls the maximum allowed request body size for /classify.
var maxBodyBytes = DefaultMaxBodyBytes

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// classifyTimeout bounds one /classify request, including a cold model load.
// Zero means no additional timeout beyond server/connection timeouts.
var classifyTimeout time.Duration

// SetClassifyTimeout sets the classify timeout (0 disables).
func SetClassifyTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	classifyTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty method
// and header lists fall back to what the browser client needs.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
	if len(corsAllowedMethods) == 0 {
		corsAllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(corsAllowedHeaders) == 0 {
		corsAllowedHeaders = []string{"Accept", "Content-Type", "X-Log-Level", "X-Request-Id"}
	}
}
