package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// BlockSize is the IV length prefixed to every block-cipher message.
const BlockSize = aes.BlockSize

// CryptoError reports a protocol-level crypto mismatch. It is never retryable.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Cipher transforms payload bytes in both directions.
type Cipher interface {
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// BlockCFB is the legacy AES-CFB scheme.
type BlockCFB struct {
	key  []byte
	rand io.Reader
}

// NewBlockCFB validates the key and returns a block cipher.
func NewBlockCFB(key []byte) (*BlockCFB, error) {
	if err := validKey(key); err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}
	return &BlockCFB{key: append([]byte(nil), key...), rand: rand.Reader}, nil
}

// Encrypt returns iv‖ciphertext with a fresh random IV.
func (b *BlockCFB) Encrypt(plain []byte) ([]byte, error) {
	return encryptBlock(plain, b.key, b.rand)
}

// Decrypt splits off the IV and decrypts the rest.
func (b *BlockCFB) Decrypt(data []byte) ([]byte, error) {
	return DecryptBlock(data, b.key)
}

// DecryptBlock decrypts iv‖ciphertext. Tampered input is not detected.
func DecryptBlock(data, key []byte) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, &CryptoError{Op: "decrypt", Err: err}
	}
	if len(data) < BlockSize {
		return nil, &CryptoError{Op: "decrypt", Err: fmt.Errorf("message of %d bytes is shorter than the %d byte iv", len(data), BlockSize)}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Op: "decrypt", Err: err}
	}

	iv := data[:BlockSize]
	plain := make([]byte, len(data)-BlockSize)
	gocipher.NewCFBDecrypter(block, iv).XORKeyStream(plain, data[BlockSize:])
	return plain, nil
}

// EncryptBlock is the inverse of DecryptBlock using crypto/rand for the IV.
func EncryptBlock(plain, key []byte) ([]byte, error) {
	return encryptBlock(plain, key, rand.Reader)
}

func encryptBlock(plain, key []byte, entropy io.Reader) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, &CryptoError{Op: "encrypt", Err: err}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Op: "encrypt", Err: err}
	}

	out := make([]byte, BlockSize+len(plain))
	iv := out[:BlockSize]
	if _, err := io.ReadFull(entropy, iv); err != nil {
		return nil, &CryptoError{Op: "encrypt", Err: fmt.Errorf("read iv: %w", err)}
	}
	gocipher.NewCFBEncrypter(block, iv).XORKeyStream(out[BlockSize:], plain)
	return out, nil
}

func validKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("key length %d, want 16, 24 or 32", len(key))
	}
}
