package identity

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// DecodeClaims extracts the claim set from a JWT without verifying its
// signature. Verification happens upstream at the identity provider; the
// claims decoded here are bookkeeping only and never gate authorization.
// The SSO/STS exchange is the real authorization step. Any decoding failure
// yields an empty claim set rather than an error.
func DecodeClaims(token string) map[string]any {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return map[string]any{}
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return map[string]any{}
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return map[string]any{}
	}
	return claims
}

// claimString fetches a string claim, returning "" for missing or non-string
// values.
func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
