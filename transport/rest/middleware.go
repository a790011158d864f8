package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
)

type contextKey string

const memberIDContextKey contextKey = "member_id"

type callerResolver interface {
	ResolveCaller(ctx context.Context, token string) (string, error)
}

// Authenticate resolves the Bearer or Token authorization into a member id stored on the request context.
func Authenticate(logger *slog.Logger, resolver callerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := authToken(r)
			if !ok {
				errorResponse(logger, w, r, apperror.ErrInvalidToken)
				return
			}

			memberID, err := resolver.ResolveCaller(r.Context(), token)
			if err != nil {
				errorResponse(logger, w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), memberIDContextKey, memberID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authToken accepts both "Bearer <jwt>" and the "Token <jwt>" form older clients send.
func authToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	scheme, token, found := strings.Cut(header, " ")
	if !found || strings.TrimSpace(token) == "" {
		return "", false
	}

	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return "", false
	}

	return strings.TrimSpace(token), true
}

// MemberIDFromContext returns the caller set by Authenticate.
func MemberIDFromContext(ctx context.Context) string {
	memberID, _ := ctx.Value(memberIDContextKey).(string)
	return memberID
}
