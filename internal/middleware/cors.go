package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures Cross-Origin Resource Sharing (CORS) policies.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// corsHeaders holds the precomputed header values shared by all requests.
type corsHeaders struct {
	allowAll bool
	origins  map[string]struct{}
	methods  string
	headers  string
	expose   string
	maxAge   string
}

func precomputeCORS(cfg CORSConfig) corsHeaders {
	h := corsHeaders{origins: make(map[string]struct{})}

	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			h.allowAll = true
			break
		}
		h.origins[origin] = struct{}{}
	}

	h.methods = strings.Join(cfg.AllowedMethods, ", ")
	h.headers = strings.Join(cfg.AllowedHeaders, ", ")

	// The request ID header is set on every response; expose it so browser
	// clients can correlate failures unless an explicit list overrides it.
	expose := cfg.ExposeHeaders
	if len(expose) == 0 {
		expose = []string{RequestIDHeader}
	}
	h.expose = strings.Join(expose, ", ")

	if cfg.MaxAge > 0 {
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return h
}

// CORSMiddleware adds CORS headers and handles preflight requests.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	pre := precomputeCORS(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := pre.allowAll
			if !pre.allowAll {
				_, allowOrigin = pre.origins[origin]
			}

			if allowOrigin {
				if pre.allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}

				if cfg.AllowCredentials && !pre.allowAll {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}

				if pre.expose != "" {
					w.Header().Set("Access-Control-Expose-Headers", pre.expose)
				}
			}

			if r.Method == http.MethodOptions {
				if allowOrigin {
					if pre.methods != "" {
						w.Header().Set("Access-Control-Allow-Methods", pre.methods)
					}
					if pre.headers != "" {
						w.Header().Set("Access-Control-Allow-Headers", pre.headers)
					}
					if pre.maxAge != "" {
						w.Header().Set("Access-Control-Max-Age", pre.maxAge)
					}
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
