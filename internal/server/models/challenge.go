package models

import "time"

// LoginChallenge is a single-use sign-in nonce handed to a wallet before it
// produces a signature. A challenge may be consumed exactly once and only
// before ExpiresAt.
type LoginChallenge struct {
	ID        string
	Nonce     string
	Address   string
	ExpiresAt time.Time
	Used      bool
}
