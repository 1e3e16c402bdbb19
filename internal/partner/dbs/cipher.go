package dbs

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCiphertext = errors.New("invalid_dbs_ciphertext")
	ErrInvalidSignature  = errors.New("invalid_dbs_signature")
)

// Cipher encrypts DBS envelopes with AES-256-CBC (PKCS#7, random IV prefixed,
// base64 encoded) and signs them with HMAC-SHA256.
type Cipher struct {
	key        []byte
	hmacSecret []byte
}

func NewCipher(aesKey, hmacSecret string) (*Cipher, error) {
	key := []byte(aesKey)
	if len(key) != 32 {
		return nil, fmt.Errorf("dbs aes key must be 32 bytes, got %d", len(key))
	}
	if strings.TrimSpace(hmacSecret) == "" {
		return nil, fmt.Errorf("missing DBS_HMAC_SECRET")
	}
	return &Cipher{key: key, hmacSecret: []byte(hmacSecret)}, nil
}

func (c *Cipher) Encrypt(plain []byte) (string, error) {
	if len(plain) == 0 {
		return "", fmt.Errorf("input data is empty")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padding := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(padding)}, padding)...)

	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	padding := int(plain[len(plain)-1])
	if padding == 0 || padding > aes.BlockSize {
		return nil, ErrInvalidCiphertext
	}
	for _, b := range plain[len(plain)-padding:] {
		if int(b) != padding {
			return nil, ErrInvalidCiphertext
		}
	}
	return plain[:len(plain)-padding], nil
}

// Sign returns the hex HMAC-SHA256 of body.
func (c *Cipher) Sign(body []byte) string {
	return hex.EncodeToString(c.signRaw(body))
}

func (c *Cipher) Verify(body []byte, signature string) error {
	expected, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || !hmac.Equal(expected, c.signRaw(body)) {
		return ErrInvalidSignature
	}
	return nil
}

func (c *Cipher) signRaw(body []byte) []byte {
	h := hmac.New(sha256.New, c.hmacSecret)
	h.Write(body)
	return h.Sum(nil)
}
