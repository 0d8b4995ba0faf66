package protocol

import "errors"

// ErrLengthMismatch is returned when the register round's ciphertext count
// does not match the commit round's mapping count.
var ErrLengthMismatch = errors.New("protocol: register/commit length mismatch")

// ErrCommitmentMismatch is returned when the salt/mapping revealed in the
// transform round does not hash back to the committed value.
var ErrCommitmentMismatch = errors.New("protocol: commitment mismatch")
