// Package auth validates bearer tokens against a per-user derived secret.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/equicloud/equicloud/internal/identity"
)

// Result is the outcome of a successful verification.
type Result struct {
	UserID string
	Legacy bool
}

// Verify parses an Authorization header value, decodes the token, and
// checks the claimed secret against both the current and legacy derivation
// for the claimed user id in constant time. It returns (result, true) on
// success.
//
// Token shape: base64(secret || ":" || user_id). The server recomputes the
// expected secret from the token's own user-id claim, so the comparison
// never needs a side lookup.
func Verify(header string) (Result, bool) {
	token := strings.TrimPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{}, false
	}

	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Result{}, false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return Result{}, false
	}
	providedSecret, userID := parts[0], parts[1]
	if userID == "" {
		return Result{}, false
	}

	expected := identity.Secret(userID)
	if constantTimeEqual(providedSecret, expected) {
		return Result{UserID: userID, Legacy: false}, true
	}

	expectedLegacy := identity.SecretLegacy(userID)
	if constantTimeEqual(providedSecret, expectedLegacy) {
		return Result{UserID: userID, Legacy: true}, true
	}

	return Result{}, false
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
