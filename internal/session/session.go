// Package session persists AWS credential material keyed by opaque session id.
// Sessions are written exactly once by the identity exchange and read by the
// credential resolver; expiry is advisory and enforced only by readers.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get for unknown or unreadable sessions.
var ErrNotFound = errors.New("session not found")

// Record is the persisted session entity. A record is either fully populated
// with valid credential fields or does not exist; no partial credential state
// is ever stored.
type Record struct {
	SessionID       string            `json:"sessionId"`
	AccessKeyID     string            `json:"accessKeyId"`
	SecretAccessKey string            `json:"secretAccessKey"`
	SessionToken    string            `json:"sessionToken,omitempty"`
	Expiry          *time.Time        `json:"expiry,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	AdditionalData  map[string]string `json:"additionalData,omitempty"`
}

// Store is the single-table persistence contract.
//
// Put is always a fresh write and must succeed before a session id is handed
// to a caller; write errors propagate. Get collapses every failure mode
// (unknown id, malformed persisted data, backing-store errors) into
// ErrNotFound so that readers can fall back to the default identity.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, sessionID string) (*Record, error)
}

// Valid reports whether the record has a parseable expiry strictly in the
// future. A missing expiry is treated as invalid.
func (r *Record) Valid(now time.Time) bool {
	if r == nil || r.Expiry == nil {
		return false
	}
	return r.Expiry.After(now)
}
