package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ticket-ledger/internal/logger"
	"ticket-ledger/internal/models"
	"ticket-ledger/internal/utils"
)

type contextKey string

const callerKey contextKey = "caller_address"

// Verifier checks a raw bearer token and returns the subject it was issued to.
type Verifier interface {
	Subject(ctx context.Context, rawToken string) (string, error)
}

func writeUnauthorized(w http.ResponseWriter, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(utils.ErrorResponse(message, detail).WithRequestID(w.Header().Get(utils.RequestIDHeader)))
}

// Middleware authenticates the bearer token and stores the caller address in
// the request context.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				writeUnauthorized(w, "Authentication required", err.Error())
				return
			}

			sub, err := v.Subject(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				writeUnauthorized(w, "Invalid token", err.Error())
				return
			}

			caller, err := models.ParseAddress(sub)
			if err != nil {
				log.LogSecurity("INVALID_SUBJECT", fmt.Sprintf("subject %q is not an address", sub))
				writeUnauthorized(w, "Invalid token subject", err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// CallerAddress returns the authenticated caller, or "" outside Middleware.
func CallerAddress(ctx context.Context) models.Address {
	if addr, ok := ctx.Value(callerKey).(models.Address); ok {
		return addr
	}
	return ""
}

func WithCaller(ctx context.Context, addr models.Address) context.Context {
	return context.WithValue(ctx, callerKey, addr)
}
