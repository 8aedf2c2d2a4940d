package library

import "errors"

// Faults that reach the user. Relay level faults never leave the relays package.
var (
	ErrSignerDenied              = errors.New("signer declined the request")
	ErrSignerUnavailable         = errors.New("no signer capability available")
	ErrSignerPayloadUnrecognized = errors.New("signer returned a payload that could not be decoded")
	ErrPublishQuorumFailed       = errors.New("no relay accepted the event")
	ErrNotConnected              = errors.New("no identity in this session")
)

// ErrInvalidIdentifier is returned by operations that take an identifier from a caller.
// The codec itself reports failure as a missing value.
var ErrInvalidIdentifier = errors.New("not a valid npub or hex public key")
