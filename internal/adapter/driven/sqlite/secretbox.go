package sqlite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// errCiphertextTooShort means a stored value cannot hold a nonce.
var errCiphertextTooShort = errors.New("ciphertext too short")

// secretBox seals values with AES-256-GCM. Sealed values are base64 text of
// nonce || ciphertext || tag.
type secretBox struct {
	aead cipher.AEAD
}

func newSecretBox(key []byte) (*secretBox, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret key: %w", err)
	}
	return &secretBox{aead: aead}, nil
}

// seal encrypts plaintext. additional binds the value to its row so a sealed
// value copied under another name fails to open.
func (b *secretBox) seal(plaintext, additional string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), []byte(additional))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *secretBox) open(encoded, additional string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	n := b.aead.NonceSize()
	if len(data) < n {
		return "", errCiphertextTooShort
	}
	plaintext, err := b.aead.Open(nil, data[:n], data[n:], []byte(additional))
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plaintext), nil
}
