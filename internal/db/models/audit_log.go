// Package models - audit_log.go defines the AuditLog model for the tamper-evident
// audit trail, capturing actor, action, affected resource, client IP, and the
// hash chain fields linking each entry to its predecessor.
package models

import "time"

// AuditLog represents an audit log entry for tracking user actions
type AuditLog struct {
	ID           string
	Seq          int64 // Monotonic insert order, backs the hash chain
	Actor        string
	Action       string  // "institution.create", "license.suspend", "auth.login", ...
	ResourceType string  // "institution", "risk_profile", "finding", "user"
	ResourceID   *string // Nullable for collection-level actions
	Details      map[string]interface{}
	IPAddress    *string
	PrevHash     string // Hex SHA-256 of the previous entry, "" for the genesis entry
	EntryHash    string // Hex SHA-256 over PrevHash and this entry's fields
	CreatedAt    time.Time
}
