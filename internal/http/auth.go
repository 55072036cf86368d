package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/jwtauth"

	"cardledger/internal/log"
)

// ClaimOwnerID is the JWT claim carrying the authenticated owner.
const ClaimOwnerID = "userId"

var errNoOwner = errors.New("token has no usable userId claim")

// NewTokenAuth returns the HS256 verifier used for every /api route.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs a token for ownerID that expires after ttl.
func IssueToken(ja *jwtauth.JWTAuth, ownerID int64, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{ClaimOwnerID: ownerID}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, ttl)

	_, token, err := ja.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return token, nil
}

// ownerFromContext reads the owner id of a request that went through the
// jwtauth verifier.
func ownerFromContext(ctx context.Context) (int64, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return 0, err
	}

	var id int64
	switch v := claims[ClaimOwnerID].(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	case int:
		id = int64(v)
	case json.Number:
		id, err = v.Int64()
	case string:
		id, err = strconv.ParseInt(v, 10, 64)
	default:
		return 0, errNoOwner
	}
	if err != nil || id <= 0 {
		return 0, errNoOwner
	}
	return id, nil
}

type ownerContextKey struct{}

// authenticate rejects requests whose token failed verification or carries
// no owner, and stores the owner id for the handlers.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		owner, err := ownerFromContext(ctx)
		if err != nil {
			atomic.AddInt64(&s.secMetrics.authFailures, 1)
			log.FromContext(ctx).WarnContext(ctx, "Unauthorized request",
				log.FieldClientIP, clientIPFromContext(ctx),
				log.FieldPath, r.URL.Path,
				log.FieldError, err.Error(),
				log.FieldErrorType, log.ErrorTypeAuth)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: http.StatusText(http.StatusUnauthorized)})
			return
		}

		logger := log.FromContext(ctx).With(log.FieldOwnerID, owner)
		ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
		ctx = context.WithValue(ctx, ownerContextKey{}, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerID(r *http.Request) int64 {
	id, _ := r.Context().Value(ownerContextKey{}).(int64)
	return id
}
