package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"
)

const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"

	// EnvEncryptionKey supplies the passphrase for ENC[...] values.
	EnvEncryptionKey = "SHIFTCAST_ENCRYPTION_KEY"

	keySalt       = "shiftcast-config-v1"
	keyIterations = 100_000
)

// getEncryptionKey derives an AES-256 key from the passphrase in the
// environment, or from a machine-specific string when none is set.
func getEncryptionKey() []byte {
	secret := os.Getenv(EnvEncryptionKey)
	if secret == "" {
		hostname, _ := os.Hostname()
		homeDir, _ := os.UserHomeDir()
		secret = fmt.Sprintf("%s-%s-shiftcast", hostname, homeDir)
	}
	return pbkdf2.Key([]byte(secret), []byte(keySalt), keyIterations, 32, sha256.New)
}

func newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(getEncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptPassword encrypts a password using AES-256-GCM
func EncryptPassword(password string) (string, error) {
	if password == "" || IsEncrypted(password) {
		return password, nil
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(password), nil)
	encoded := base64.StdEncoding.EncodeToString(ciphertext)

	return encryptedPrefix + encoded + encryptedSuffix, nil
}

// DecryptPassword decrypts a password encrypted with EncryptPassword.
// Plaintext input is returned unchanged.
func DecryptPassword(encrypted string) (string, error) {
	if !IsEncrypted(encrypted) {
		return encrypted, nil
	}

	encoded := strings.TrimSuffix(strings.TrimPrefix(encrypted, encryptedPrefix), encryptedSuffix)
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted password: %w", err)
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt password: %w", err)
	}

	return string(plaintext), nil
}

// IsEncrypted checks if a string is encrypted
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// EncryptConfigPasswords encrypts every secret in a config in place
func EncryptConfigPasswords(config *models.Config) error {
	encrypted, err := EncryptPassword(config.Snowflake.Password)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to encrypt Snowflake password")
	}
	config.Snowflake.Password = encrypted
	return nil
}

// DecryptConfigPasswords decrypts every secret in a config in place
func DecryptConfigPasswords(config *models.Config) error {
	decrypted, err := DecryptPassword(config.Snowflake.Password)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to decrypt Snowflake password").
			WithSuggestions(
				fmt.Sprintf("Set %s to the passphrase used when the config was encrypted", EnvEncryptionKey),
				"Or re-run 'shiftcast setup'",
			)
	}
	config.Snowflake.Password = decrypted
	return nil
}
