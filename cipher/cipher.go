/*
Package cipher implements the per-message payload encryption scheme used on
the subscribe channel:

	key:    first 32 hex characters of sha256(passphrase), used as raw bytes
	mode:   AES-256-CBC with the fixed IV "0123456789012345"
	coding: base64 over the ciphertext, padding stripped by trailing count

The scheme, fixed IV included, is dictated by the remote service; both sides
must derive the identical key from the shared passphrase.
*/
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrBadCiphertext = errors.New("bad ciphertext")
	ErrBadPadding    = errors.New("bad padding")
)

// The IV is fixed by the wire scheme, not chosen by us.
var initialVector = []byte("0123456789012345")

type Cipher struct {
	block cipher.Block
}

func New(passphrase string) (*Cipher, error) {
	block, err := aes.NewCipher(deriveKey(passphrase))
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}

	return &Cipher{block: block}, nil
}

// Decrypt unwinds one message payload: base64 decode, CBC decrypt, strip the
// trailing padding count. Padding counts outside 1..BlockSize mean the key is
// wrong or the payload was never ours.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64: %v", ErrBadCiphertext, err)
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a whole number of blocks", ErrBadCiphertext, len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, initialVector).CryptBlocks(plaintext, ciphertext)

	pad := int(plaintext[len(plaintext)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(plaintext) {
		return nil, fmt.Errorf("%w: padding count %d", ErrBadPadding, pad)
	}

	return plaintext[:len(plaintext)-pad], nil
}

// Encrypt is the inverse: pad to a whole block, CBC encrypt, base64 encode.
func (c *Cipher) Encrypt(plaintext []byte) string {
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize

	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, initialVector).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext)
}

func deriveKey(passphrase string) []byte {
	digest := sha256.Sum256([]byte(passphrase))
	return []byte(hex.EncodeToString(digest[:])[:32])
}
