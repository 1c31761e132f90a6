// Package secrets loads the service's private keys from PEM files and
// exposes their public halves for the key registry.
package secrets

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"cashflow/internal/signature"
)

// Key names as recorded in logs and security events.
const (
	ReportSigningKey = "report-signing"
	JWTSigningKey    = "jwt-signing"
)

// Config names the key files and their ids.
type Config struct {
	ReportKeyID   string
	ReportKeyFile string
	JWTKeyID      string
	JWTKeyFile    string
}

// ActiveKey is a currently active key as the registry sees it: id, name and
// DER-encoded PKIX public key.
type ActiveKey struct {
	ID     uuid.UUID
	Name   string
	Public []byte
}

// Store holds the loaded keys. It is read-only after Load.
type Store struct {
	report signature.SigningKey
	active []ActiveKey
}

// Load reads the report signing key and, when configured, the JWT key.
func Load(cfg Config) (*Store, error) {
	report, err := loadKey(ReportSigningKey, cfg.ReportKeyID, cfg.ReportKeyFile)
	if err != nil {
		return nil, err
	}
	s := &Store{report: signature.SigningKey{ID: report.id, Private: report.key}}
	if err := s.add(ReportSigningKey, report); err != nil {
		return nil, err
	}

	if cfg.JWTKeyFile != "" {
		jwt, err := loadKey(JWTSigningKey, cfg.JWTKeyID, cfg.JWTKeyFile)
		if err != nil {
			return nil, err
		}
		if err := s.add(JWTSigningKey, jwt); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewStore builds a store from keys already in memory.
func NewStore(reportID uuid.UUID, reportKey *rsa.PrivateKey) (*Store, error) {
	s := &Store{report: signature.SigningKey{ID: reportID, Private: reportKey}}
	if err := s.add(ReportSigningKey, loadedKey{id: reportID, key: reportKey}); err != nil {
		return nil, err
	}
	return s, nil
}

// ReportSigningKey returns the active private key for signing reports.
func (s *Store) ReportSigningKey() signature.SigningKey { return s.report }

// ActiveKeys returns every active key in load order.
func (s *Store) ActiveKeys() []ActiveKey {
	out := make([]ActiveKey, len(s.active))
	copy(out, s.active)
	return out
}

type loadedKey struct {
	id  uuid.UUID
	key *rsa.PrivateKey
}

func (s *Store) add(name string, k loadedKey) error {
	der, err := MarshalPublicKey(&k.key.PublicKey)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.active = append(s.active, ActiveKey{ID: k.id, Name: name, Public: der})
	return nil
}

func loadKey(name, id, path string) (loadedKey, error) {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return loadedKey{}, fmt.Errorf("%s: invalid key id %q: %w", name, id, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return loadedKey{}, fmt.Errorf("%s: read key file: %w", name, err)
	}
	key, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return loadedKey{}, fmt.Errorf("%s: %w", name, err)
	}
	return loadedKey{id: keyID, key: key}, nil
}

// ParsePrivateKeyPEM reads an RSA private key in PKCS#8 or PKCS#1 form.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS#1 format
		rsaKey, err1 := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err1 != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return rsaKey, nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}

// MarshalPublicKey encodes pub as DER PKIX, the stored form.
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return der, nil
}

// ParsePublicKey decodes a stored DER PKIX RSA public key.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}

// EncodePrivateKeyPEM writes key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
