package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PrivateKeyFile = "private.pem"
	PublicKeyFile  = "public.pem"
)

// KeyPair is the Ed25519 signing pair owned by the token service
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// NewKeyPair generates a fresh pair from r, or crypto/rand when r is nil
func NewKeyPair(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// LoadOrCreateKeyPair loads the pair stored in dir, generating and persisting one on first run.
// A public key without its private half is an error: regenerating would silently
// invalidate every outstanding token.
func LoadOrCreateKeyPair(dir string) (*KeyPair, error) {
	privPath := filepath.Join(dir, PrivateKeyFile)
	pubPath := filepath.Join(dir, PublicKeyFile)

	_, err := os.Stat(privPath)
	switch {
	case err == nil:
		return LoadKeyPair(dir)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat private key: %w", err)
	}

	if _, err := os.Stat(pubPath); err == nil {
		return nil, fmt.Errorf("found %s without %s in %s", PublicKeyFile, PrivateKeyFile, dir)
	}

	kp, err := NewKeyPair(nil)
	if err != nil {
		return nil, err
	}
	if err := WriteKeyPair(dir, kp, false); err != nil {
		return nil, err
	}
	log.Printf("auth: generated new signing key pair in %s", dir)
	return kp, nil
}

// LoadKeyPair reads both halves from dir and checks they belong together
func LoadKeyPair(dir string) (*KeyPair, error) {
	privPEM, err := os.ReadFile(filepath.Join(dir, PrivateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := jwt.ParseEdPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an ed25519 key")
	}

	pub, err := LoadPublicKey(filepath.Join(dir, PublicKeyFile))
	if err != nil {
		return nil, err
	}
	if !pub.Equal(priv.Public()) {
		return nil, errors.New("public key does not match private key")
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// LoadPublicKey reads a PEM encoded Ed25519 public key for verify-only deployments
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	pubPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an ed25519 key")
	}
	return pub, nil
}

// WriteKeyPair persists kp to dir. Existing files are kept unless overwrite is set.
func WriteKeyPair(dir string, kp *KeyPair, overwrite bool) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(kp.Private)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(kp.Public)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}

	if err := writePEM(filepath.Join(dir, PrivateKeyFile), "PRIVATE KEY", privDER, 0o600, overwrite); err != nil {
		return err
	}
	return writePEM(filepath.Join(dir, PublicKeyFile), "PUBLIC KEY", pubDER, 0o644, overwrite)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Sync()
}

// Close wipes the private key from memory
func (k *KeyPair) Close() error {
	for i := range k.Private {
		k.Private[i] = 0
	}
	k.Private = nil
	return nil
}
