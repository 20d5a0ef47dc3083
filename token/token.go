// Package token implements the reader/writer coordination protocol used
// throughout BitFunnel: a Token marks the lifetime of a reader's critical
// section, a TokenTracker waits for all tokens issued before a cutoff serial
// to drain, and a TokenManager hands out tokens and keeps the FIFO of
// trackers moving forward.
package token

// listener receives exactly one completion notification for the Token that
// was constructed with it.
type listener interface {
	onTokenComplete(serial uint64)
}

// Token is a scoped value whose lifetime defines a reader's critical
// section. Constructing a Token (via Manager.RequestToken) reserves a
// monotonically increasing serial number; Drop delivers exactly one
// completion notification to the owning listener. No finalizer is set, so a
// Token that is never dropped never notifies. The type does not prevent
// copying: each copy carries its own valid flag, so dropping two copies of
// one live Token notifies twice.
//
// Go has no move constructors, so instead of the source header's "movable,
// with source tombstoning" contract, Token exposes Take(), which transfers
// ownership to a new value and tombstones the receiver. A tombstoned Token's
// Drop is a no-op, matching "the moved-from instance does not notify".
type Token struct {
	serial   uint64
	listener listener
	valid    bool
}

func newToken(serial uint64, l listener) Token {
	return Token{serial: serial, listener: l, valid: true}
}

// Serial returns the token's serial number.
func (t *Token) Serial() uint64 {
	return t.serial
}

// Valid reports whether the token has not yet been dropped or taken from.
func (t *Token) Valid() bool {
	return t.valid
}

// Take transfers ownership of t to the returned Token and tombstones t, so
// that a later t.Drop() is a no-op. This is Go's substitute for the source's
// C++ move constructor.
func (t *Token) Take() Token {
	if !t.valid {
		return Token{}
	}
	out := Token{serial: t.serial, listener: t.listener, valid: true}
	t.valid = false
	t.listener = nil
	return out
}

// Drop ends the token's critical section, delivering exactly one completion
// notification to the manager that issued it. Dropping a tombstoned
// (already-taken, or zero-value) Token is a no-op. Drop is idempotent after
// the first call: subsequent calls are no-ops.
func (t *Token) Drop() {
	if !t.valid {
		return
	}
	t.valid = false
	l := t.listener
	t.listener = nil
	if l != nil {
		l.onTokenComplete(t.serial)
	}
}
