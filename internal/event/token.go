package event

import "github.com/google/uuid"

// Token is the opaque identity of a connection, window or injector.
// The zero Token means "none".
type Token uuid.UUID

// NoToken is the zero token.
var NoToken Token

// NewToken returns a fresh random token.
func NewToken() Token {
	return Token(uuid.New())
}

// ParseToken parses the canonical textual form of a token.
func ParseToken(s string) (Token, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NoToken, err
	}
	return Token(u), nil
}

// IsZero reports whether t is NoToken.
func (t Token) IsZero() bool {
	return t == NoToken
}

// String returns the canonical textual form, or "none" for NoToken.
func (t Token) String() string {
	if t.IsZero() {
		return "none"
	}
	return uuid.UUID(t).String()
}
