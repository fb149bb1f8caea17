package jwtx

import (
	"fmt"
	"math/rand/v2"

	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/cryptox"
)

// KeyManager owns the signing keys for a process and the KeySet/Verifier
// derived from them. Keys live only in memory: a restart invalidates every
// outstanding token.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	algorithm string
	signers   []Signer
}

type KeyManagerOptions struct {
	Algorithm string // EdDSA (default) or ES256
	Issuer    string
	Audience  string
	NumKeys   int // 1..10, default 1
}

func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: issuer is required")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmEdDSA
	}
	n := min(max(opts.NumKeys, 1), 10)

	keys := NewKeySet()
	signers := make([]Signer, 0, n)
	for i := range n {
		signer, err := generateSigner(opts.Algorithm)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		if err := keys.AddSigner(signer); err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}

	return &KeyManager{
		Verifier: NewVerifier(keys, VerifyOptions{
			Algorithm: opts.Algorithm,
			Issuer:    opts.Issuer,
			Audience:  opts.Audience,
		}),
		KeySet:    keys,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

func generateSigner(alg string) (Signer, error) {
	kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}
	kid = "cred-" + kid

	var pemKey []byte
	switch alg {
	case AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	case AlgorithmES256:
		pemKey, err = cryptox.GenerateES256Key()
	default:
		return nil, fmt.Errorf("unsupported algorithm %q (supported: EdDSA, ES256)", alg)
	}
	if err != nil {
		return nil, err
	}
	return NewSigner(alg, kid, pemKey)
}

func (km *KeyManager) Algorithm() string { return km.algorithm }
func (km *KeyManager) NumSigners() int   { return len(km.signers) }
func (km *KeyManager) IsReady() bool     { return km.KeySet.IsReady() }

// Signer picks one of the active signing keys at random.
func (km *KeyManager) Signer() Signer {
	return km.signers[rand.IntN(len(km.signers))]
}
