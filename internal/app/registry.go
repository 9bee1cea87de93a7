package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
	"github.com/lngsa1234/avari-socketio-backend/internal/domain"
)

// Entry binds a registered connection to its identity and current match.
type Entry struct {
	SID     core.SessionID
	UserID  domain.UserID
	MatchID domain.MatchID
	Conn    core.SignalConn
}

// PeerSnapshot is a point-in-time view of a match member, safe to iterate
// after the registry lock is released.
type PeerSnapshot struct {
	SID    core.SessionID
	UserID domain.UserID
	Conn   core.SignalConn
}

// MatchInfo is a read-only diagnostics view (no transport fields).
type MatchInfo struct {
	ID             domain.MatchID `json:"matchId"`
	Participants   []string       `json:"participants"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
}

type matchState struct {
	meta    *domain.Match
	members []*Entry // insertion order, len <= domain.MaxMatchMembers
}

// Registry owns the user index and the match table. One mutex covers both
// so every add/remove stays a single atomic step.
type Registry struct {
	mu      sync.RWMutex
	conns   map[core.SessionID]core.SignalConn
	users   map[domain.UserID]*Entry
	bySID   map[core.SessionID]*Entry
	matches map[domain.MatchID]*matchState

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[core.SessionID]core.SignalConn),
		users:   make(map[domain.UserID]*Entry),
		bySID:   make(map[core.SessionID]*Entry),
		matches: make(map[domain.MatchID]*matchState),
		now:     time.Now,
	}
}

// BindConn tracks a live channel before it has registered, so shutdown
// broadcasts reach it. Safe to call once per connection.
func (r *Registry) BindConn(sid core.SessionID, conn core.SignalConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sid] = conn
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound connection")
}

// Register admits a connection into a match under the given userId.
// Returns the match's participant list (insertion order, caller included)
// and a snapshot of the peers that were already present.
//
// Re-registering a userId overwrites the user index without touching the
// displaced connection's match membership (last writer wins).
func (r *Registry) Register(sid core.SessionID, conn core.SignalConn, userID domain.UserID, matchID domain.MatchID) ([]string, []PeerSnapshot, error) {
	if err := userID.Validate(); err != nil {
		return nil, nil, core.ValidationErr(err.Error())
	}
	if err := matchID.Validate(); err != nil {
		return nil, nil, core.ValidationErr(err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	m, ok := r.matches[matchID]
	if !ok {
		m = &matchState{meta: domain.NewMatch(matchID, now)}
		r.matches[matchID] = m
		log.Info().Str("module", "app.registry").Str("match", string(matchID)).Msg("match created")
	}

	entry := r.bySID[sid]
	if entry == nil || entry.MatchID != matchID {
		// Admit into the target before touching any existing state: a
		// rejected registration must leave the old membership and the
		// user index exactly as they were.
		if len(m.members) >= domain.MaxMatchMembers {
			return nil, nil, core.MatchFullErr(string(matchID))
		}
	}

	if entry != nil && entry.MatchID != matchID {
		// A connection belongs to at most one match; moving re-registers.
		if prev, ok := r.users[entry.UserID]; ok && prev.SID == sid {
			delete(r.users, entry.UserID)
		}
		r.dropFromMatch(entry)
		entry = nil
		delete(r.bySID, sid)
	}

	if entry == nil {
		entry = &Entry{SID: sid, UserID: userID, MatchID: matchID, Conn: conn}
		m.members = append(m.members, entry)
		r.bySID[sid] = entry
	} else if entry.UserID != userID {
		// Same connection, new label. Release the old index slot if it is
		// still ours.
		if prev, ok := r.users[entry.UserID]; ok && prev.SID == sid {
			delete(r.users, entry.UserID)
		}
		entry.UserID = userID
	}

	r.users[userID] = entry
	m.meta.Touch(now)

	participants := make([]string, 0, len(m.members))
	peers := make([]PeerSnapshot, 0, len(m.members)-1)
	for _, e := range m.members {
		participants = append(participants, string(e.UserID))
		if e.SID != sid {
			peers = append(peers, PeerSnapshot{SID: e.SID, UserID: e.UserID, Conn: e.Conn})
		}
	}

	log.Info().Str("module", "app.registry").
		Str("sid", string(sid)).
		Str("user", string(userID)).
		Str("match", string(matchID)).
		Int("participants", len(participants)).
		Msg("registered")
	return participants, peers, nil
}

// Lookup resolves a userId to its current connection. O(1).
func (r *Registry) Lookup(userID domain.UserID) (PeerSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.users[userID]
	if !ok {
		return PeerSnapshot{}, false
	}
	return PeerSnapshot{SID: e.SID, UserID: e.UserID, Conn: e.Conn}, true
}

// MatchOf returns the match a connection is registered to, if any.
func (r *Registry) MatchOf(sid core.SessionID) (domain.MatchID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.bySID[sid]
	if !ok {
		return "", false
	}
	return e.MatchID, true
}

// UserOf returns the userId a connection registered under, if any.
func (r *Registry) UserOf(sid core.SessionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.bySID[sid]
	if !ok {
		return "", false
	}
	return e.UserID, true
}

// Touch refreshes the match's activity timestamp.
func (r *Registry) Touch(matchID domain.MatchID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.matches[matchID]; ok {
		m.meta.Touch(r.now())
	}
}

// MembersOf snapshots a match's current members, excluding none.
func (r *Registry) MembersOf(matchID domain.MatchID) []PeerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	if !ok {
		return nil
	}
	out := make([]PeerSnapshot, 0, len(m.members))
	for _, e := range m.members {
		out = append(out, PeerSnapshot{SID: e.SID, UserID: e.UserID, Conn: e.Conn})
	}
	return out
}

// Remove retracts everything the registry knows about a connection.
// Returns the removed entry (ok=false if it never registered) and a
// snapshot of the members remaining in its match for peer notification.
// The match is deleted the moment it empties.
func (r *Registry) Remove(sid core.SessionID) (Entry, []PeerSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, sid)

	e, ok := r.bySID[sid]
	if !ok {
		return Entry{}, nil, false
	}
	delete(r.bySID, sid)

	// The index slot may already belong to a newer connection that
	// registered the same userId; leave it alone in that case.
	if prev, ok := r.users[e.UserID]; ok && prev.SID == sid {
		delete(r.users, e.UserID)
	}

	r.dropFromMatch(e)

	var remaining []PeerSnapshot
	if m, ok := r.matches[e.MatchID]; ok {
		remaining = make([]PeerSnapshot, 0, len(m.members))
		for _, p := range m.members {
			remaining = append(remaining, PeerSnapshot{SID: p.SID, UserID: p.UserID, Conn: p.Conn})
		}
	}

	log.Info().Str("module", "app.registry").
		Str("sid", string(sid)).
		Str("user", string(e.UserID)).
		Str("match", string(e.MatchID)).
		Int("remaining", len(remaining)).
		Msg("removed")
	return *e, remaining, true
}

// dropFromMatch detaches an entry from its match's member list and deletes
// the match when it empties. Caller holds the write lock.
func (r *Registry) dropFromMatch(e *Entry) {
	m, ok := r.matches[e.MatchID]
	if !ok {
		return
	}
	members := m.members[:0]
	for _, p := range m.members {
		if p.SID != e.SID {
			members = append(members, p)
		}
	}
	m.members = members
	if len(m.members) == 0 {
		delete(r.matches, e.MatchID)
		log.Info().Str("module", "app.registry").Str("match", string(e.MatchID)).Msg("match deleted")
	}
}

// Connections snapshots every live channel, registered or not.
func (r *Registry) Connections() []core.SignalConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Counts reports aggregate occupancy for the health probe.
func (r *Registry) Counts() (connections, matches int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.matches)
}

// Snapshot lists every match for the diagnostics endpoint.
func (r *Registry) Snapshot() []MatchInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MatchInfo, 0, len(r.matches))
	for id, m := range r.matches {
		info := MatchInfo{
			ID:             id,
			Participants:   make([]string, 0, len(m.members)),
			CreatedAt:      m.meta.CreatedAt,
			LastActivityAt: m.meta.LastActivityAt,
		}
		for _, e := range m.members {
			info.Participants = append(info.Participants, string(e.UserID))
		}
		out = append(out, info)
	}
	return out
}

// PurgeStale deletes empty matches whose last activity is older than ttl.
// Occupied matches are never purged here, whatever their age.
func (r *Registry) PurgeStale(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	purged := 0
	for id, m := range r.matches {
		if len(m.members) == 0 && m.meta.StaleSince(now, ttl) {
			delete(r.matches, id)
			purged++
			log.Info().Str("module", "app.registry").Str("match", string(id)).Msg("stale match purged")
		}
	}
	return purged
}
