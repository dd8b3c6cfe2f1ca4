package secrets

import (
	"crypto/aes"
	aescipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

var errInvalidCiphertext = errors.New("invalid ciphertext")

// cipher encrypts and decrypts enc: credential values with AES-256-GCM.
// The key is derived from the configured passphrase with SHA-256.
type cipher struct {
	key []byte
}

func newCipher(passphrase string) *cipher {
	hash := sha256.Sum256([]byte(passphrase))
	return &cipher{key: hash[:]}
}

// Encrypt produces a base64 ciphertext suitable for an enc: reference. It
// exists so operators can seal credentials with the same key the resolver
// uses.
func (c *cipher) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := aescipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *cipher) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errInvalidCiphertext
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := aescipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", errInvalidCiphertext
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errInvalidCiphertext
	}
	return string(plaintext), nil
}

// Seal encrypts a plaintext credential with the given passphrase, producing
// the value for an enc: reference.
func Seal(passphrase, plaintext string) (string, error) {
	return newCipher(passphrase).encrypt(plaintext)
}
