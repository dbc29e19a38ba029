// Package lserr centralizes the sentinel errors other packages wrap with
// fmt.Errorf("...: %w", err) at each call site, so callers can classify
// failures with errors.Is without packages depending on each other's
// error types directly.
package lserr

import "errors"

var (
	// ErrInvalidConfigFile covers JSON parse failure, a missing required
	// field, or an embedded invalid key.
	ErrInvalidConfigFile = errors.New("lightsocks: invalid config file")

	// ErrInvalidConfigURL covers URL parse failure or a fragment that is
	// not a valid key.
	ErrInvalidConfigURL = errors.New("lightsocks: invalid config url")

	// ErrMissingKey is fatal at startup: a resolved config with no key.
	ErrMissingKey = errors.New("lightsocks: missing key")

	// ErrDialFailed covers outbound connect failure to the server relay
	// or to the final destination.
	ErrDialFailed = errors.New("lightsocks: dial failed")

	// ErrProtocolViolation covers a non-0x05 version byte, a too-short
	// request, an unsupported CMD, or an unsupported ATYP.
	ErrProtocolViolation = errors.New("lightsocks: protocol violation")
)
