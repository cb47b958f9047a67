package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var sealingKey []byte

const sealingSalt = "storeit-otp-sealing"

var ErrSealingNotConfigured = errors.New("secret sealing not configured")

// ConfigureSealing derives the AES-256 key used to seal one-time code secrets at rest.
func ConfigureSealing(secret string) {
	if secret == "" {
		return
	}
	hkdfReader := hkdf.New(
		sha256.New,
		[]byte(secret),
		[]byte(sealingSalt),
		[]byte("otp-secret-key"),
	)
	sealingKey = make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, sealingKey); err != nil {
		panic(fmt.Sprintf("failed to derive sealing key: %v", err))
	}
}

func newGCM() (cipher.AEAD, error) {
	if sealingKey == nil {
		return nil, ErrSealingNotConfigured
	}
	block, err := aes.NewCipher(sealingKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func SealSecret(plaintext string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func OpenSecret(sealed string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
