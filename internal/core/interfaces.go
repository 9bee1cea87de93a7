package core

// Frame is a raw outbound payload (already-marshaled JSON event).
type Frame []byte

// SessionID identifies one client connection for its whole lifetime,
// independent of whatever userId it later registers under.
type SessionID string

// SignalConn abstracts a client's persistent signaling transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}
