package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

// Secrets file parameters. The file layout is [salt][nonce][ciphertext+tag].
const (
	secretsFileName = "secrets.json.enc"
	secretsDirName  = ".devteam"
	saltSize        = 16
	nonceSize       = 12
	scryptN         = 32768 // 2^15
	scryptR         = 8
	scryptP         = 1
	keySize         = 32 // AES-256
)

// SecretsFileExists reports whether an encrypted secrets file exists for the
// given project directory.
func SecretsFileExists(projectDir string) bool {
	_, err := os.Stat(secretsPath(projectDir))
	return err == nil
}

func secretsPath(projectDir string) string {
	return filepath.Join(projectDir, secretsDirName, secretsFileName)
}

// EncryptSecretsFile encrypts secrets with a password-derived key and writes
// them to .devteam/secrets.json.enc with 0600 permissions.
func EncryptSecretsFile(projectDir, password string, secrets map[string]string) error {
	passwordBytes := []byte(password)
	defer zero(passwordBytes)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key(passwordBytes, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}
	defer zero(key)

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	fileData := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	fileData = append(fileData, salt...)
	fileData = append(fileData, nonce...)
	fileData = append(fileData, ciphertext...)

	dir := filepath.Join(projectDir, secretsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}
	if err := os.WriteFile(secretsPath(projectDir), fileData, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// DecryptSecretsFile reads and decrypts .devteam/secrets.json.enc. A wrong
// password surfaces as an authentication failure from GCM.
func DecryptSecretsFile(projectDir, password string) (map[string]string, error) {
	fileData, err := os.ReadFile(secretsPath(projectDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	if len(fileData) < saltSize+nonceSize {
		return nil, fmt.Errorf("secrets file truncated: %d bytes", len(fileData))
	}

	salt := fileData[:saltSize]
	nonce := fileData[saltSize : saltSize+nonceSize]
	ciphertext := fileData[saltSize+nonceSize:]

	passwordBytes := []byte(password)
	defer zero(passwordBytes)

	key, err := scrypt.Key(passwordBytes, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secrets (wrong password?): %w", err)
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets JSON: %w", err)
	}
	return secrets, nil
}

// ResolveSecret returns a secret by name, preferring the decrypted secrets
// map and falling back to the environment.
func ResolveSecret(name string, secrets map[string]string) (string, error) {
	if value, ok := secrets[name]; ok && value != "" {
		return value, nil
	}
	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not found in secrets file or environment", name)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
