// Package domain contains core mock-server entities
// Following Hexagonal Architecture: These models are infrastructure-agnostic
package domain

import (
	"sort"
	"time"
)

// Target is one candidate file of a mapping entry.
// Path is relative to the res folder; Weight is always > 0.
type Target struct {
	Path   string `json:"path"`
	Weight uint32 `json:"weight"`
}

// MappingEntry is one override rule from the map file
type MappingEntry struct {
	RequestPath string   `json:"request_path"`
	Targets     []Target `json:"targets"`
}

// IsWeighted reports whether the entry picks among several targets
func (e MappingEntry) IsWeighted() bool {
	return len(e.Targets) > 1
}

// MappingTable maps request paths to override rules.
// It is built once and never mutated, so concurrent readers need no locking.
type MappingTable struct {
	entries     map[string]MappingEntry
	fingerprint uint64
}

// NewMappingTable builds a table from entries in declaration order.
// A later entry with the same request path replaces an earlier one.
func NewMappingTable(entries []MappingEntry, fingerprint uint64) *MappingTable {
	t := &MappingTable{
		entries:     make(map[string]MappingEntry, len(entries)),
		fingerprint: fingerprint,
	}
	for _, e := range entries {
		targets := make([]Target, len(e.Targets))
		copy(targets, e.Targets)
		t.entries[e.RequestPath] = MappingEntry{RequestPath: e.RequestPath, Targets: targets}
	}
	return t
}

// EmptyMappingTable returns a table with no overrides
func EmptyMappingTable() *MappingTable {
	return NewMappingTable(nil, 0)
}

// Lookup returns the entry for an exact, case-sensitive request path
func (t *MappingTable) Lookup(requestPath string) (MappingEntry, bool) {
	if t == nil {
		return MappingEntry{}, false
	}
	e, ok := t.entries[requestPath]
	return e, ok
}

// Len returns the number of entries
func (t *MappingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Fingerprint returns the hash of the map file contents the table was built from
func (t *MappingTable) Fingerprint() uint64 {
	if t == nil {
		return 0
	}
	return t.fingerprint
}

// Entries returns a copy of all entries ordered by request path
func (t *MappingTable) Entries() []MappingEntry {
	if t == nil {
		return nil
	}
	out := make([]MappingEntry, 0, len(t.entries))
	for _, e := range t.entries {
		targets := make([]Target, len(e.Targets))
		copy(targets, e.Targets)
		out = append(out, MappingEntry{RequestPath: e.RequestPath, Targets: targets})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestPath < out[j].RequestPath })
	return out
}

// LineIssue describes a map file line (or part of one) the loader skipped
type LineIssue struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// ResolutionKind tags the outcome of path resolution
type ResolutionKind int

const (
	NotFound ResolutionKind = iota
	FileCandidate
)

// Rule names which branch of the resolver produced a target
type Rule string

const (
	RuleNone     Rule = ""
	RuleOverride Rule = "override"
	RuleWeighted Rule = "weighted"
	RuleDefault  Rule = "default"
)

// ResolvedTarget is the result of resolving a request path.
// Path is only meaningful when Kind is FileCandidate.
type ResolvedTarget struct {
	Kind  ResolutionKind `json:"-"`
	Path  string         `json:"path,omitempty"`
	Rule  Rule           `json:"rule,omitempty"`
	Index bool           `json:"index"` // directory fallback appended "index"
}

// Found reports whether a file should be attempted
func (r ResolvedTarget) Found() bool {
	return r.Kind == FileCandidate
}

// AccessRecord is the audit trail of one served mock request
type AccessRecord struct {
	ID           int64         `json:"id" db:"id"`
	RequestID    string        `json:"request_id" db:"request_id"`
	Method       string        `json:"method" db:"method"`
	Path         string        `json:"path" db:"path"`
	Status       int           `json:"status" db:"status"`
	Rule         Rule          `json:"rule" db:"rule"`
	ResolvedFile string        `json:"resolved_file" db:"resolved_file"`
	Bytes        int64         `json:"bytes" db:"bytes"`
	Duration     time.Duration `json:"duration" db:"duration_us"`
	RemoteAddr   string        `json:"remote_addr" db:"remote_addr"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// HitCounts holds per request path and per served file counters
type HitCounts struct {
	Paths map[string]int64 `json:"paths"`
	Files map[string]int64 `json:"files"`
}
