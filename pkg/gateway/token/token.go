// Package token handles the two JWT operations on the hot path: an
// unsigned pre-parse that locates the session record, and HMAC-SHA256
// verification against that record's per-session secret.
//
// Session-scoped keys limit the blast radius of a key compromise and
// let the identity service rotate keys per session.
package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openfidc/gateway/pkg/errs"
)

const bearerPrefix = "Bearer "

// Claims are the payload fields the gateway reads before verification.
// Partner is optional; older token revisions carried it.
type Claims struct {
	SessionID string `json:"sessionId"`
	Partner   string `json:"partner,omitempty"`
}

// stripBearer removes an optional "Bearer " prefix, case-insensitively.
func stripBearer(token string) string {
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(token[len(bearerPrefix):])
	}
	return strings.TrimSpace(token)
}

// ExtractClaims pre-parses the token WITHOUT verifying the signature:
// it only locates the sessionId whose stored secret will verify the
// token afterwards. Never trust these claims on their own.
func ExtractClaims(token string) (*Claims, *errs.Error) {
	raw := stripBearer(token)
	if raw == "" {
		return nil, errs.SessionInvalid("empty token")
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, errs.SessionInvalid("malformed token")
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, errs.SessionInvalid("malformed token payload")
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errs.SessionInvalid("malformed token claims")
	}
	if claims.SessionID == "" {
		return nil, errs.SessionInvalid("token missing session id")
	}
	return &claims, nil
}

// ExtractSessionID is the common case of ExtractClaims.
func ExtractSessionID(token string) (string, *errs.Error) {
	claims, err := ExtractClaims(token)
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

// decodeSegment decodes a base64url JWT segment, with or without
// padding.
func decodeSegment(seg string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(seg); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(seg)
}

// Validate verifies the token's HMAC-SHA256 signature with the
// session's secret. False covers every verification failure: bad
// signature, malformed structure, wrong algorithm, expired claims.
// The secret must never be logged by callers.
func Validate(token, sessionSecret string) bool {
	raw := stripBearer(token)
	if raw == "" || sessionSecret == "" {
		return false
	}

	parsed, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) {
			return []byte(sessionSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	return err == nil && parsed.Valid
}
