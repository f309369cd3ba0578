package model

import "time"

// TrackedFile maps one absolute file path to its history line.
type TrackedFile struct {
	Path      string    `json:"path"`
	LineID    string    `json:"line_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Remote is the push target for every history line.
type Remote struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// PushReport records the per-line outcome of a push.
type PushReport struct {
	Remote string            `json:"remote"`
	Pushed []string          `json:"pushed"`
	Failed map[string]string `json:"failed,omitempty"`
}

// OK reports whether every line was pushed.
func (r *PushReport) OK() bool {
	return len(r.Failed) == 0
}

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string
