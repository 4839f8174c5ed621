// Package peers implements the in-memory peer table every node keeps of
// the other devices it has heard on the radio: who they are, what role
// they play, and whether they are still around.
package peers

import (
	"errors"
	"sync"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// MaxPeers bounds the registry to a small fixed size, matching the
// embedded original's static peer table.
const MaxPeers = 8

const (
	onlineThresholdMs = 15_000
	staleThresholdMs  = 60_000
)

// ErrRegistryFull is returned by Upsert when a new MAC cannot be admitted
// because every row is paired and ONLINE or STALE, so none can be evicted.
var ErrRegistryFull = errors.New("peers: registry full, no evictable row")

// Registry is the node's table of known peers. MAC is unique across rows;
// once a row's Registered flag is set it stays set until the row is
// evicted; a row survives to persistence only while Paired is true.
type Registry struct {
	mu   sync.Mutex
	rows []domain.PeerRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Status derives ONLINE/STALE/OFFLINE from how long ago rec was last
// heard from, relative to nowMs.
func Status(rec domain.PeerRecord, nowMs uint64) domain.PeerStatus {
	if rec.LastSeenMs == 0 {
		return domain.StatusOffline
	}
	age := nowMs - rec.LastSeenMs
	switch {
	case nowMs < rec.LastSeenMs:
		return domain.StatusOnline // clock rolled forward since the sample; treat as fresh
	case age < onlineThresholdMs:
		return domain.StatusOnline
	case age < staleThresholdMs:
		return domain.StatusStale
	default:
		return domain.StatusOffline
	}
}

// FindByMAC returns the row for mac, if known.
func (r *Registry) FindByMAC(mac domain.MAC) (domain.PeerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.MAC == mac {
			return row, true
		}
	}
	return domain.PeerRecord{}, false
}

// FindByRoleOnline returns a paired row of the given role whose status is
// ONLINE or STALE, if any.
func (r *Registry) FindByRoleOnline(role domain.RoleTag, nowMs uint64) (domain.PeerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if !row.Paired || row.Role != role {
			continue
		}
		st := Status(row, nowMs)
		if st == domain.StatusOnline || st == domain.StatusStale {
			return row, true
		}
	}
	return domain.PeerRecord{}, false
}

// HasOnlinePeer reports whether any paired row is ONLINE or STALE.
func (r *Registry) HasOnlinePeer(nowMs uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if !row.Paired {
			continue
		}
		st := Status(row, nowMs)
		if st == domain.StatusOnline || st == domain.StatusStale {
			return true
		}
	}
	return false
}

// Upsert records that mac was just heard from with the given identity.
// An existing row has its mutable identity fields overwritten and
// last_seen_ms refreshed. An unknown MAC is inserted as
// registered=false, paired=false, evicting an existing row if the table
// is full: first the oldest unpaired row, else the oldest OFFLINE row,
// else ErrRegistryFull.
func (r *Registry) Upsert(mac domain.MAC, role domain.RoleTag, hostname string, id uint8, nowMs uint64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.rows {
		if r.rows[i].MAC == mac {
			r.rows[i].Role = role
			r.rows[i].Hostname = hostname
			r.rows[i].DeviceID = id
			r.rows[i].LastSeenMs = nowMs
			return i, nil
		}
	}

	newRow := domain.PeerRecord{
		MAC:        mac,
		Role:       role,
		Hostname:   hostname,
		DeviceID:   id,
		LastSeenMs: nowMs,
		Registered: false,
		Paired:     false,
	}

	if len(r.rows) < MaxPeers {
		r.rows = append(r.rows, newRow)
		return len(r.rows) - 1, nil
	}

	victim, ok := r.evictionCandidate(nowMs)
	if !ok {
		return -1, ErrRegistryFull
	}
	r.rows[victim] = newRow
	return victim, nil
}

// evictionCandidate picks the row index to replace: the oldest unpaired
// row by last_seen_ms, else the oldest OFFLINE row, else none.
func (r *Registry) evictionCandidate(nowMs uint64) (int, bool) {
	best := -1
	for i, row := range r.rows {
		if row.Paired {
			continue
		}
		if best == -1 || row.LastSeenMs < r.rows[best].LastSeenMs {
			best = i
		}
	}
	if best != -1 {
		return best, true
	}

	for i, row := range r.rows {
		if Status(row, nowMs) != domain.StatusOffline {
			continue
		}
		if best == -1 || row.LastSeenMs < r.rows[best].LastSeenMs {
			best = i
		}
	}
	if best != -1 {
		return best, true
	}
	return -1, false
}

// SetRegistered marks mac's row registered; a no-op if unknown.
func (r *Registry) SetRegistered(mac domain.MAC, registered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].MAC == mac {
			r.rows[i].Registered = r.rows[i].Registered || registered
			return
		}
	}
}

// SetPaired marks mac's row's paired flag; a no-op if unknown.
func (r *Registry) SetPaired(mac domain.MAC, paired bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].MAC == mac {
			r.rows[i].Paired = paired
			return
		}
	}
}

// UpdateDiag stores the most recent beacon diagnostics for mac.
func (r *Registry) UpdateDiag(mac domain.MAC, diag domain.Diagnostics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].MAC == mac {
			r.rows[i].Diag = diag
			return
		}
	}
}

// Forget removes mac's row, if present.
func (r *Registry) Forget(mac domain.MAC) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].MAC == mac {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return
		}
	}
}

// ForgetAll empties the registry.
func (r *Registry) ForgetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = nil
}

// All returns a snapshot copy of every row currently held.
func (r *Registry) All() []domain.PeerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PeerRecord, len(r.rows))
	copy(out, r.rows)
	return out
}

// PairedRows returns a snapshot of only the rows with Paired set, the
// subset that is ever written to persistence.
func (r *Registry) PairedRows() []domain.PeerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PeerRecord
	for _, row := range r.rows {
		if row.Paired {
			out = append(out, row)
		}
	}
	return out
}

// LoadRows replaces the registry contents with rows restored from
// persistence; callers are expected to have already zeroed LastSeenMs so
// the rows report OFFLINE until heard again this session.
func (r *Registry) LoadRows(rows []domain.PeerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append([]domain.PeerRecord(nil), rows...)
}
