package model

import "time"

// AuditEventType identifies the type of auditable event.
type AuditEventType string

const (
	EventTypeTrack     AuditEventType = "track"
	EventTypeCommit    AuditEventType = "commit"
	EventTypeRestore   AuditEventType = "restore"
	EventTypeDeleteAll AuditEventType = "delete_all"
	EventTypeDeleteOne AuditEventType = "delete_one"
	EventTypeRemote    AuditEventType = "remote"
	EventTypePush      AuditEventType = "push"
	EventTypeRepair    AuditEventType = "repair"
	EventTypeGC        AuditEventType = "gc"
)

// AuditRecord is a single line in the audit log (JSONL format).
type AuditRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	Path       string         `json:"path,omitempty"`
	LineID     string         `json:"line_id,omitempty"`
	SnapshotID SnapshotID     `json:"snapshot_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	PrevHash   HashValue      `json:"prev_hash"`
	RecordHash HashValue      `json:"record_hash"`
}
