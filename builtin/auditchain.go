package builtin

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// AuditEntry is one record in the hash-chained audit log. Hash covers the
// entry's own fields plus the previous entry's hash, so any tampering breaks
// every hash after it.
type AuditEntry struct {
	Index    int       `json:"index"`
	Time     time.Time `json:"time"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Detail   string    `json:"detail,omitempty"`
	PrevHash string    `json:"prev_hash"`
	Hash     string    `json:"hash"`
}

// AuditChain is an append-only, hash-chained audit log.
type AuditChain struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewAuditChain creates an empty audit chain.
func NewAuditChain() *AuditChain {
	return &AuditChain{}
}

// Append records an audit event and returns the sealed entry.
func (a *AuditChain) Append(actor, action, detail string) AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := AuditEntry{
		Index:  len(a.entries),
		Time:   time.Now().UTC(),
		Actor:  actor,
		Action: action,
		Detail: detail,
	}
	if entry.Index > 0 {
		entry.PrevHash = a.entries[entry.Index-1].Hash
	}
	entry.Hash = hashEntry(entry)

	a.entries = append(a.entries, entry)
	return entry
}

// Entries returns a copy of the chain.
func (a *AuditChain) Entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of entries in the chain.
func (a *AuditChain) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Verify walks the chain and reports the index of the first entry whose hash
// does not match, or -1 if the chain is intact.
func (a *AuditChain) Verify() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	prevHash := ""
	for i, entry := range a.entries {
		if entry.PrevHash != prevHash {
			return i
		}
		if hashEntry(entry) != entry.Hash {
			return i
		}
		prevHash = entry.Hash
	}
	return -1
}

// hashEntry computes the blake2b digest over the entry fields and PrevHash.
// Hash itself is excluded.
func hashEntry(e AuditEntry) string {
	payload := fmt.Sprintf("%d|%d|%s|%s|%s|%s",
		e.Index, e.Time.UnixNano(), e.Actor, e.Action, e.Detail, e.PrevHash)
	sum := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
