package signature

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"cashflow/internal/core"
)

// MinKeyBits is the smallest accepted RSA modulus.
const MinKeyBits = 2048

// ErrSignature marks infrastructure failures of signing or verification:
// missing keys, unusable keys and crypto provider errors. A signature that
// simply does not match is not an error.
var ErrSignature = errors.New("signature error")

// PublicKeyLookup resolves historical public keys by id.
type PublicKeyLookup interface {
	PublicKey(ctx context.Context, keyID uuid.UUID) (*rsa.PublicKey, error)
}

// SigningKey is the currently active private key and its id.
type SigningKey struct {
	ID      uuid.UUID
	Private *rsa.PrivateKey
}

// Signer signs reports with the active key and verifies reports signed by
// any key known to the lookup. It holds no mutable state and is safe for
// concurrent use.
type Signer struct {
	active SigningKey
	keys   PublicKeyLookup
	rand   io.Reader
}

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}

func NewSigner(active SigningKey, keys PublicKeyLookup) (*Signer, error) {
	if active.Private == nil {
		return nil, fmt.Errorf("%w: no active signing key", ErrSignature)
	}
	if err := checkKeySize(&active.Private.PublicKey); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, fmt.Errorf("%w: no public key lookup", ErrSignature)
	}
	return &Signer{active: active, keys: keys, rand: rand.Reader}, nil
}

// ActiveKeyID returns the id of the key new signatures are made with.
func (s *Signer) ActiveKeyID() uuid.UUID {
	return s.active.ID
}

// Sign enumerates the leaves of the report's projection and signs their
// plaintext. The returned paths must be stored with the signature.
func (s *Signer) Sign(report core.Report) (core.ReportSignature, error) {
	doc, err := NewDocument(NewProjection(report))
	if err != nil {
		return core.ReportSignature{}, fmt.Errorf("%w: %w", ErrSignature, err)
	}
	leaves := doc.Leaves()

	digest := sha256.Sum256(Plaintext(leaves))
	sig, err := rsa.SignPSS(s.rand, s.active.Private, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return core.ReportSignature{}, fmt.Errorf("%w: sign: %w", ErrSignature, err)
	}
	return core.ReportSignature{
		Signature: sig,
		KeyID:     s.active.ID,
		JSONPaths: Paths(leaves),
	}, nil
}

// Verify checks sig against report. The plaintext is rebuilt from the
// values at sig.JSONPaths only; leaves are not enumerated again. The path
// list itself is not covered by the signature.
//
// It returns false when the content does not match, including when a stored
// path no longer resolves. Failing to obtain a usable key returns an error
// wrapping ErrSignature.
func (s *Signer) Verify(ctx context.Context, report core.Report, sig core.ReportSignature) (bool, error) {
	pub, err := s.keys.PublicKey(ctx, sig.KeyID)
	if err != nil {
		return false, fmt.Errorf("%w: public key %s: %w", ErrSignature, sig.KeyID, err)
	}
	if pub == nil {
		return false, fmt.Errorf("%w: public key %s is nil", ErrSignature, sig.KeyID)
	}
	if err := checkKeySize(pub); err != nil {
		return false, err
	}

	doc, err := NewDocument(NewProjection(report))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSignature, err)
	}
	return verifyDocument(pub, doc, sig)
}

func verifyDocument(pub *rsa.PublicKey, doc *Document, sig core.ReportSignature) (bool, error) {
	plaintext, err := doc.PlaintextAt(sig.JSONPaths)
	if err != nil {
		return false, nil
	}

	digest := sha256.Sum256(plaintext)
	err = rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig.Signature, pssOptions)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, rsa.ErrVerification):
		return false, nil
	default:
		return false, fmt.Errorf("%w: verify: %w", ErrSignature, err)
	}
}

func checkKeySize(pub *rsa.PublicKey) error {
	if pub.N == nil || pub.N.BitLen() < MinKeyBits {
		return fmt.Errorf("%w: key smaller than %d bits", ErrSignature, MinKeyBits)
	}
	return nil
}
