package core

import "fmt"

// Error type tags as they appear on the wire in error{type,message} events.
const (
	ErrTypeValidation    = "validation"
	ErrTypeMatchFull     = "match_full"
	ErrTypeUserOffline   = "user_offline"
	ErrTypeConfiguration = "configuration"
	ErrTypeProvider      = "provider"
	ErrTypeInternal      = "internal"
)

// RelayError is an operation failure that is reported back to the
// originating connection as a single error event and nowhere else.
type RelayError struct {
	Type    string
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func ValidationErr(msg string) *RelayError {
	return &RelayError{Type: ErrTypeValidation, Message: msg}
}

func MatchFullErr(matchID string) *RelayError {
	return &RelayError{Type: ErrTypeMatchFull, Message: fmt.Sprintf("match %q already has two participants", matchID)}
}

func UserOfflineErr(userID string) *RelayError {
	return &RelayError{Type: ErrTypeUserOffline, Message: fmt.Sprintf("user %q is not connected", userID)}
}

func ConfigurationErr(msg string) *RelayError {
	return &RelayError{Type: ErrTypeConfiguration, Message: msg}
}

func ProviderErr(msg string) *RelayError {
	return &RelayError{Type: ErrTypeProvider, Message: msg}
}
