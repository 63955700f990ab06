package auth

import (
	"fmt"
	"time"
)

// Credential is the tagged union of supported login schemes. The verifier
// dispatches on the concrete type; new schemes must be added here explicitly
// rather than inferred from payload shape.
type Credential interface {
	credentialScheme() string
}

// SignInPayload is the structured message a wallet signs to prove control of
// an address. Domain binds the proof to this deployment, Nonce makes it
// single-use, and the two timestamps bound its validity window.
type SignInPayload struct {
	Address        string    `json:"address"`
	Domain         string    `json:"domain"`
	Statement      string    `json:"statement"`
	Nonce          string    `json:"nonce"`
	IssuedAt       time.Time `json:"issuedAt"`
	ExpirationTime time.Time `json:"expirationTime"`
}

// Message renders the canonical text that is signed. Any change here breaks
// previously issued payloads.
func (p SignInPayload) Message() string {
	return fmt.Sprintf(
		"%s wants you to sign in with your wallet account:\n%s\n\n%s\n\nNonce: %s\nIssued At: %s\nExpiration Time: %s",
		p.Domain,
		p.Address,
		p.Statement,
		p.Nonce,
		p.IssuedAt.UTC().Format(time.RFC3339),
		p.ExpirationTime.UTC().Format(time.RFC3339),
	)
}

// WalletProof is a SignInPayload together with the signature produced by the
// wallet and the hex-encoded ed25519 public key of the signer.
type WalletProof struct {
	Payload   SignInPayload `json:"payload"`
	Signature string        `json:"signature"`
	PublicKey string        `json:"publicKey"`
}

func (WalletProof) credentialScheme() string { return "wallet" }

// PasswordCredential is the username/password login scheme.
type PasswordCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (PasswordCredential) credentialScheme() string { return "password" }
