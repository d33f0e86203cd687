package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
	"gorm.io/gorm"
)

const fernetKeySetting = "fernet_key"

// ErrUnsealable means a stored credential could not be decrypted with the
// configured key.
var ErrUnsealable = errors.New("credential token is invalid for the configured key")

// Sealer encrypts credentials at rest.
type Sealer struct {
	key *fernet.Key
}

// NewSealer decodes an explicit key.
func NewSealer(encoded string) (*Sealer, error) {
	key, err := fernet.DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode fernet key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// loadSealer reads the key from settings, generating and storing one on
// first use.
func loadSealer(db *gorm.DB) (*Sealer, error) {
	var s Setting
	err := db.Where("key = ?", fernetKeySetting).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var k fernet.Key
		if err := k.Generate(); err != nil {
			return nil, fmt.Errorf("generate fernet key: %w", err)
		}
		if err := db.Create(&Setting{Key: fernetKeySetting, Value: k.Encode()}).Error; err != nil {
			return nil, fmt.Errorf("save fernet key: %w", err)
		}
		return &Sealer{key: &k}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load fernet key: %w", err)
	}
	return NewSealer(s.Value)
}

// Seal encrypts plaintext. Empty stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), s.key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return string(tok), nil
}

// Open decrypts a token produced by Seal.
func (s *Sealer) Open(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), 0*time.Second, []*fernet.Key{s.key})
	if msg == nil {
		return "", ErrUnsealable
	}
	return string(msg), nil
}
