package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/domain/auth"
)

// HashAPIKey derives the stored lookup hash for an API key: HMAC-SHA256 of
// the key material under the server pepper, hex encoded. Keys are looked up
// by hash, so a database leak exposes no usable credentials.
func HashAPIKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// apiKeyFrom extracts the presented key from the X-API-Key header, or an
// Authorization bearer token as a fallback.
func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	authz := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return token
	}
	return ""
}

// requireAPIKey guards admin routes. Every failure mode is the same 401 so
// probing cannot distinguish a missing key from a revoked one.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFrom(r)
		if key == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "api key required")
			return
		}

		stored, err := h.keys.FindByHash(r.Context(), HashAPIKey(h.pepper, key))
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeErrorMessage(w, http.StatusUnauthorized, "invalid api key")
			return
		case err != nil:
			zctx.From(r.Context()).Error("api key lookup failed", zap.Error(err))
			writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		zctx.From(r.Context()).Debug("api key accepted", zap.String("label", stored.Label))
		next.ServeHTTP(w, r)
	})
}
