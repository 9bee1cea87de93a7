package domain

import "time"

// MaxMatchMembers caps a match at two connections. The relay is built for
// strict 1:1 calls.
const MaxMatchMembers = 2

// Match holds call-session meta. Membership lives in the registry.
type Match struct {
	ID             MatchID
	CreatedAt      time.Time
	LastActivityAt time.Time
}

func NewMatch(id MatchID, now time.Time) *Match {
	return &Match{ID: id, CreatedAt: now, LastActivityAt: now}
}

func (m *Match) Touch(now time.Time) {
	m.LastActivityAt = now
}

// StaleSince reports whether the match saw no activity within ttl.
func (m *Match) StaleSince(now time.Time, ttl time.Duration) bool {
	return now.Sub(m.LastActivityAt) > ttl
}
