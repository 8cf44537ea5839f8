// Package session defines the authenticated session record consumed by
// the gateway and its Redis-backed store. The gateway only ever reads
// sessions; creation and mutation belong to the identity service.
package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openfidc/gateway/pkg/gateway/headers"
)

// KeyPrefix is the namespace under which the identity service stores
// session records.
const KeyPrefix = "fidc:session:"

// Relationship is one contractual relationship between the user and a
// fund. The selected relationship contributes relationshipId and
// contractNumber to the upstream envelope.
type Relationship struct {
	ID             string `json:"id"`
	Type           string `json:"type,omitempty"`
	Name           string `json:"name,omitempty"`
	Status         string `json:"status,omitempty"`
	ContractNumber string `json:"contractNumber,omitempty"`
}

// UserInfo identifies the authenticated user.
type UserInfo struct {
	DocumentNumber string `json:"documentNumber"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	BirthDate      string `json:"birthDate,omitempty"`
}

// Fund identifies the pension fund the session is scoped to.
type Fund struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Session is the per-user authenticated context stored in Redis.
// Unknown JSON fields are tolerated so the identity service can evolve
// the record without lock-step gateway deploys.
type Session struct {
	SessionID            string         `json:"sessionId"`
	Partner              string         `json:"partner"`
	SessionSecret        string         `json:"sessionSecret"`
	UserInfo             UserInfo       `json:"userInfo"`
	Fund                 Fund           `json:"fund"`
	RelationshipList     []Relationship `json:"relationshipList,omitempty"`
	RelationshipSelected *Relationship  `json:"relationshipSelected,omitempty"`
	Permissions          []string       `json:"permissions,omitempty"`
	CreatedAt            string         `json:"createdAt,omitempty"`
	UpdatedAt            string         `json:"updatedAt,omitempty"`
}

// RedisKey builds the store key for a partner/session pair.
func RedisKey(partner, sessionID string) string {
	return KeyPrefix + partner + ":" + sessionID
}

// Parse decodes a stored session payload. Unknown fields are ignored;
// a record missing sessionId, partner or sessionSecret is malformed.
// The payload content never appears in the returned error.
func Parse(payload []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	if s.SessionID == "" || s.Partner == "" || s.SessionSecret == "" {
		return nil, fmt.Errorf("session record missing required fields")
	}
	return &s, nil
}

// HasValidRelationship reports whether a relationship has been selected
// for this session. Protected routes require one.
func (s *Session) HasValidRelationship() bool {
	return s.RelationshipSelected != nil
}

// HasPermissions reports whether every required permission code is
// present in the session's permission set. Comparison is case-sensitive;
// an empty requirement always passes.
func (s *Session) HasPermissions(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(s.Permissions))
	for _, p := range s.Permissions {
		have[p] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// PartnerMatches compares the session's partner against the inbound
// header value, case-insensitively.
func (s *Session) PartnerMatches(partner string) bool {
	return strings.EqualFold(s.Partner, partner)
}

// ToHeaders derives the upstream envelope from the session. Optional
// fields map to empty strings, which the header writer omits.
// Permissions are joined by comma with no spaces.
func (s *Session) ToHeaders() map[string]string {
	h := map[string]string{
		headers.UserDocumentNumber: s.UserInfo.DocumentNumber,
		headers.UserEmail:          s.UserInfo.Email,
		headers.UserName:           s.UserInfo.Name,
		headers.FundID:             s.Fund.ID,
		headers.FundName:           s.Fund.Name,
		headers.Partner:            s.Partner,
		headers.SessionID:          s.SessionID,
		headers.UserPermissions:    strings.Join(s.Permissions, ","),
	}
	if s.RelationshipSelected != nil {
		h[headers.RelationshipID] = s.RelationshipSelected.ID
		h[headers.ContractNumber] = s.RelationshipSelected.ContractNumber
	}
	return h
}
