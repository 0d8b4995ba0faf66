package session

import "errors"

var (
	ErrInvalidPackage   = errors.New("session: invalid package")
	ErrDuplicateFile    = errors.New("session: duplicate file")
	ErrDuplicateMapping = errors.New("session: duplicate mapping")
	ErrNoPackage        = errors.New("session: no unused package for user/key")
	ErrUnknownSession   = errors.New("session: unknown session")
	ErrSessionClosed    = errors.New("session: session closed")
	ErrRateLimited      = errors.New("session: rate limited")
	ErrAlreadyUnlocked  = errors.New("session: already unlocked")
	ErrInvalidKey       = errors.New("session: invalid key")
	ErrProtocolError    = errors.New("session: protocol error")
)
