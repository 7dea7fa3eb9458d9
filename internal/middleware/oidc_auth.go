package middleware

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gqlhttp/internal/logging"
	"gqlhttp/internal/observability"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// OIDCAuthConfig controls OIDC/JWKS validation behavior.
type OIDCAuthConfig struct {
	Enabled       bool
	IssuerURL     string
	Audience      string
	ClockSkew     time.Duration
	SkipTLSVerify bool
}

type authContextKey struct{}

// AuthContext carries validated JWT claims. Resolvers can read it from the
// request context via AuthFromContext.
type AuthContext struct {
	Subject  string
	Issuer   string
	Audience []string
	Claims   map[string]interface{}
}

// AuthFromContext returns the auth context from a request context.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return AuthContext{}, false
	}
	auth, ok := value.(AuthContext)
	return auth, ok
}

// authDenial describes why a request was rejected, split into the reason
// recorded in metrics/logs and the message returned to the client.
type authDenial struct {
	reason     string
	logMessage string
	clientMsg  string
	tokenError string
}

// OIDCAuthMiddleware validates Bearer tokens when enabled. securityMetrics
// may be nil to disable security monitoring.
func OIDCAuthMiddleware(cfg OIDCAuthConfig, logger *logging.Logger, securityMetrics *observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	if cfg.IssuerURL == "" || cfg.Audience == "" {
		return nil, errors.New("oidc auth enabled but issuer/audience not configured")
	}

	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = 2 * time.Minute
	}

	issuerURL, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oidc issuer url: %w", err)
	}
	if issuerURL.Scheme != "https" {
		return nil, errors.New("oidc issuer url must use https")
	}
	if logger != nil && cfg.SkipTLSVerify {
		logger.Warn("oidc tls verification is disabled; enable only for local development",
			"issuer", cfg.IssuerURL,
		)
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify},
		},
		Timeout: 10 * time.Second,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oidc provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        cfg.Audience,
		SkipIssuerCheck: false,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := r.URL.Path

			if securityMetrics != nil {
				securityMetrics.RecordAuthAttempt(r.Context(), endpoint)
			}

			deny := func(d authDenial, err error) {
				if securityMetrics != nil {
					securityMetrics.RecordAuthFailure(r.Context(), endpoint, d.reason)
					if d.tokenError != "" {
						securityMetrics.RecordTokenValidationError(r.Context(), d.tokenError)
					}
					if d.reason == "missing_token" || d.reason == "token_verification_failed" {
						securityMetrics.RecordUnauthorizedAttempt(r.Context(), endpoint, d.reason)
					}
				}
				if logger != nil {
					attrs := []any{
						slog.String("endpoint", endpoint),
						slog.String("remote_addr", r.RemoteAddr),
					}
					if err != nil {
						attrs = append(attrs, slog.String("error", err.Error()))
					}
					logging.FromContext(r.Context()).Warn(d.logMessage, attrs...)
				}
				writeUnauthorized(w, d.clientMsg)
			}

			tokenString := bearerToken(r.Header.Get("Authorization"))
			if tokenString == "" {
				deny(authDenial{
					reason:     "missing_token",
					logMessage: "authentication failed: missing bearer token",
					clientMsg:  "missing bearer token",
				}, nil)
				return
			}

			idToken, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				deny(authDenial{
					reason:     "token_verification_failed",
					logMessage: "oidc token validation failed",
					clientMsg:  "invalid token",
					tokenError: "verification_failed",
				}, err)
				return
			}

			claims := map[string]interface{}{}
			if err := idToken.Claims(&claims); err != nil {
				deny(authDenial{
					reason:     "claims_parse_failed",
					logMessage: "oidc token claims parse failed",
					clientMsg:  "invalid token claims",
					tokenError: "claims_parse_failed",
				}, err)
				return
			}

			if err := validateTimeClaims(claims, cfg.ClockSkew); err != nil {
				deny(authDenial{
					reason:     "time_validation_failed",
					logMessage: "oidc token time validation failed",
					clientMsg:  "invalid token",
					tokenError: "time_validation_failed",
				}, err)
				return
			}

			subject, _ := claims["sub"].(string)
			aud := extractAudience(claims)

			if securityMetrics != nil {
				securityMetrics.RecordAuthSuccess(r.Context(), endpoint, cfg.IssuerURL)
			}

			if logger != nil {
				logging.FromContext(r.Context()).Debug("authentication successful",
					slog.String("subject", subject),
					slog.String("issuer", cfg.IssuerURL),
					slog.String("endpoint", endpoint),
				)
			}

			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", subject),
					attribute.String("auth.issuer", cfg.IssuerURL),
					attribute.Bool("auth.authenticated", true),
				)
				if len(aud) > 0 {
					span.SetAttributes(attribute.StringSlice("auth.audience", aud))
				}
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, AuthContext{
				Subject:  subject,
				Issuer:   cfg.IssuerURL,
				Audience: aud,
				Claims:   claims,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func bearerToken(value string) string {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// writeUnauthorized answers with the GraphQL error body shape so clients can
// route auth failures through their normal error handling.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	body := map[string]interface{}{
		"errors": []map[string]interface{}{{"message": message}},
	}
	_ = json.NewEncoder(w).Encode(body)
}

func validateTimeClaims(claims map[string]interface{}, skew time.Duration) error {
	if skew <= 0 {
		return nil
	}

	now := time.Now()
	if exp, ok := numericDate(claims["exp"]); ok {
		if now.After(exp.Add(skew)) {
			return errors.New("token expired")
		}
	}
	if nbf, ok := numericDate(claims["nbf"]); ok {
		if now.Add(skew).Before(nbf) {
			return errors.New("token not valid yet")
		}
	}
	return nil
}

func numericDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	default:
		return time.Time{}, false
	}
}

func extractAudience(claims map[string]interface{}) []string {
	raw, ok := claims["aud"]
	if !ok {
		return nil
	}

	switch val := raw.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	default:
		return nil
	}
}
