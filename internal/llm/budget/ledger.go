// Package budget enforces token ceilings per workspace and globally over
// rolling daily and monthly windows.
package budget

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Retention is how long usage entries are kept. Anything older is pruned
// on access.
const Retention = 30 * 24 * time.Hour

// Entry is one append-only usage record.
type Entry struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	Tokens      int64     `json:"tokens"`
	At          time.Time `json:"at"`
}

// Ledger stores usage entries. An empty workspaceID addresses the global
// ledger, which holds every entry regardless of workspace.
type Ledger interface {
	// Append records e in the global ledger and, if set, e's workspace.
	Append(ctx context.Context, e Entry) error
	// Remove deletes a previously appended entry.
	Remove(ctx context.Context, e Entry) error
	// Sum totals tokens recorded at or after since.
	Sum(ctx context.Context, workspaceID string, since time.Time) (int64, error)
	// Prune drops entries recorded before cutoff.
	Prune(ctx context.Context, workspaceID string, cutoff time.Time) error
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu         sync.Mutex
	global     []Entry
	workspaces map[string][]Entry
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{workspaces: make(map[string][]Entry)}
}

// Append implements Ledger.
func (m *MemoryLedger) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.global = append(m.global, e)
	if e.WorkspaceID != "" {
		m.workspaces[e.WorkspaceID] = append(m.workspaces[e.WorkspaceID], e)
	}
	return nil
}

// Remove implements Ledger.
func (m *MemoryLedger) Remove(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.global = removeEntry(m.global, e.ID)
	if e.WorkspaceID != "" {
		if rest := removeEntry(m.workspaces[e.WorkspaceID], e.ID); len(rest) > 0 {
			m.workspaces[e.WorkspaceID] = rest
		} else {
			delete(m.workspaces, e.WorkspaceID)
		}
	}
	return nil
}

// Sum implements Ledger.
func (m *MemoryLedger) Sum(_ context.Context, workspaceID string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.global
	if workspaceID != "" {
		entries = m.workspaces[workspaceID]
	}

	var total int64
	for _, e := range entries {
		if !e.At.Before(since) {
			total += e.Tokens
		}
	}
	return total, nil
}

// Prune implements Ledger. The in-memory ledger prunes every workspace at
// once, so workspaceID is ignored.
func (m *MemoryLedger) Prune(_ context.Context, _ string, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.global = keepSince(m.global, cutoff)
	for ws, entries := range m.workspaces {
		if kept := keepSince(entries, cutoff); len(kept) > 0 {
			m.workspaces[ws] = kept
		} else {
			delete(m.workspaces, ws)
		}
	}
	return nil
}

// Workspaces lists workspaces that still hold entries.
func (m *MemoryLedger) Workspaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.workspaces))
	for ws := range m.workspaces {
		out = append(out, ws)
	}
	sort.Strings(out)
	return out
}

func removeEntry(entries []Entry, id string) []Entry {
	for i, e := range entries {
		if e.ID == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

func keepSince(entries []Entry, cutoff time.Time) []Entry {
	kept := entries[:0]
	for _, e := range entries {
		if !e.At.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}
