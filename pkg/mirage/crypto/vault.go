// Package crypto implements the credential vault: password-based key
// derivation plus authenticated symmetric encryption for the decision-service
// credential. The credential is stored as an opaque sealed blob and is only
// ever decrypted in memory at startup.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// kdfIterations is the PBKDF2 iteration count. Raising it invalidates
	// no existing blobs (the salt and nonce travel with the ciphertext),
	// but both sides of a seal/unseal pair must agree on it.
	kdfIterations = 100_000
	keyLen        = 32
	saltLen       = 16
)

// Configuration errors: raised before any cryptographic operation when the
// required inputs are absent. These are fatal at startup.
var (
	ErrMissingCredential = errors.New("credential must not be empty")
	ErrMissingPassphrase = errors.New("passphrase must not be empty")
)

// CredentialError wraps a cryptographic failure while sealing or unsealing
// the credential. A vault operation never silently returns an empty or
// default credential; any cipher failure surfaces as this error.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %s failed: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// DeriveKey derives a 32-byte AES key from a passphrase and salt using
// PBKDF2-SHA256. The salt is generated per seal and stored in the blob; a
// fixed salt would defeat the point of the KDF.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, keyLen, sha256.New)
}

// Seal encrypts a credential under a passphrase-derived key and returns
// base64(salt || nonce || ciphertext). Both inputs are required.
func Seal(credential, passphrase string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}
	if passphrase == "" {
		return "", ErrMissingPassphrase
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", &CredentialError{Op: "seal", Err: err}
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return "", &CredentialError{Op: "seal", Err: err}
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &CredentialError{Op: "seal", Err: err}
	}

	ct := aead.Seal(nil, nonce, []byte(credential), nil)
	blob := make([]byte, 0, len(salt)+len(nonce)+len(ct))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ct...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Open decrypts a blob produced by Seal. A wrong passphrase, corrupted
// blob, or tampered payload all fail with a CredentialError.
func Open(sealed, passphrase string) (string, error) {
	if sealed == "" {
		return "", ErrMissingCredential
	}
	if passphrase == "" {
		return "", ErrMissingPassphrase
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", &CredentialError{Op: "open", Err: err}
	}
	if len(raw) < saltLen {
		return "", &CredentialError{Op: "open", Err: errors.New("sealed credential too short")}
	}

	salt, rest := raw[:saltLen], raw[saltLen:]
	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return "", &CredentialError{Op: "open", Err: err}
	}
	if len(rest) < aead.NonceSize() {
		return "", &CredentialError{Op: "open", Err: errors.New("sealed credential too short")}
	}

	nonce, ct := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", &CredentialError{Op: "open", Err: err}
	}
	return string(plain), nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
