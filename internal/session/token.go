package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// literalUndefined is what a broken client writes into the cookie when the
// token variable was never set; treat it the same as an absent token.
const literalUndefined = "undefined"

// IsValid reports whether a session token is present and not yet expired.
//
// This is a liveness check only, not a trust boundary: the signature is not
// verified here. The issuing backend re-validates the token on every
// privileged call, so this gate exists to avoid presenting a token that is
// already dead.
func IsValid(token string) bool {
	return IsValidAt(token, time.Now())
}

// IsValidAt is IsValid against an explicit clock
func IsValidAt(token string, now time.Time) bool {
	exp, ok := expirationOf(token)
	if !ok {
		return false
	}
	return exp.After(now)
}

// expirationOf extracts the expiry claim from a compact token. Any decode or
// parse failure is reported as absence; callers fail closed on it.
func expirationOf(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if token == "" || token == literalUndefined {
		return time.Time{}, false
	}

	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return time.Time{}, false
	}

	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return time.Time{}, false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
