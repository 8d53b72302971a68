package model

import (
	"fmt"
	"time"
)

// AuditLog is the append-only list of human-readable state transitions kept on
// every entity. Operators read these entries directly, so wording matters more
// than machine-parsability.
type AuditLog []string

// Append records a timestamped entry.
func (l *AuditLog) Append(format string, args ...any) {
	ts := time.Now().UTC().Format(time.RFC3339)
	*l = append(*l, ts+" "+fmt.Sprintf(format, args...))
}
