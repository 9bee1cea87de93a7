// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const (
	MaxUserIDLen  = 64
	MaxMatchIDLen = 64
)

var (
	ErrUserIDEmpty    = errors.New("userId empty")
	ErrMatchIDEmpty   = errors.New("matchId empty")
	ErrUserIDTooLong  = errors.New("userId too long")
	ErrMatchIDTooLong = errors.New("matchId too long")
)

// UserID is a caller-supplied label, trusted in scope. It is not an
// authenticated identity.
type UserID string

// MatchID names a 1:1 call session.
type MatchID string

func (u UserID) Validate() error {
	if len(u) == 0 {
		return ErrUserIDEmpty
	}
	if len(u) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}

func (m MatchID) Validate() error {
	if len(m) == 0 {
		return ErrMatchIDEmpty
	}
	if len(m) > MaxMatchIDLen {
		return ErrMatchIDTooLong
	}
	return nil
}
