package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"surveyforge/internal/common"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Service name under which secrets are filed in the OS keyring
	keyringService = "surveyforge"
	// Salt for key derivation
	saltSize = 32
	// Number of iterations for PBKDF2
	pbkdf2Iterations = 100000
	// Key size for AES-256
	keySize = 32
)

// CredentialManager stores warehouse passwords and repository tokens in the
// system keyring where one is available, falling back to AES-GCM encrypted
// files under the per-user config directory otherwise.
type CredentialManager struct {
	useKeyring bool
	masterKey  []byte
}

// Credential is a stored secret plus its bookkeeping metadata.
type Credential struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     string            `json:"value"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Encrypted bool              `json:"encrypted"`
}

// NewCredentialManager creates a credential manager, initializing the
// file-backed master key when no system keyring is usable.
func NewCredentialManager() (*CredentialManager, error) {
	cm := &CredentialManager{
		useKeyring: isKeyringAvailable(),
	}

	if !cm.useKeyring {
		key, err := cm.loadOrCreateMasterKey()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize master key: %w", err)
		}
		cm.masterKey = key
	}

	return cm, nil
}

// StoreCredential securely stores a credential under the given name.
func (cm *CredentialManager) StoreCredential(name, credType, value string, metadata map[string]string) error {
	if cm.useKeyring {
		return cm.storeInKeyring(name, credType, value, metadata)
	}
	return cm.storeEncrypted(name, credType, value, metadata)
}

// GetCredential retrieves a stored credential with its value decrypted.
func (cm *CredentialManager) GetCredential(name string) (*Credential, error) {
	if cm.useKeyring {
		return cm.getFromKeyring(name)
	}
	return cm.getEncrypted(name)
}

// DeleteCredential removes a stored credential.
func (cm *CredentialManager) DeleteCredential(name string) error {
	if cm.useKeyring {
		if err := keyring.Delete(keyringService, name); err != nil {
			return err
		}
		return cm.updateIndex(name, false)
	}
	return cm.deleteEncrypted(name)
}

// ListCredentials returns the names of all stored credentials.
func (cm *CredentialManager) ListCredentials() ([]string, error) {
	if cm.useKeyring {
		// The keyring API cannot enumerate entries, so a separate index
		// file tracks what has been stored.
		return cm.readIndex()
	}
	return cm.listEncrypted()
}

// Keyring storage

func (cm *CredentialManager) storeInKeyring(name, credType, value string, metadata map[string]string) error {
	cred := Credential{
		Name:     name,
		Type:     credType,
		Value:    value,
		Metadata: metadata,
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	if err := keyring.Set(keyringService, name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return cm.updateIndex(name, true)
}

func (cm *CredentialManager) getFromKeyring(name string) (*Credential, error) {
	data, err := keyring.Get(keyringService, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return &cred, nil
}

// Encrypted file storage

func (cm *CredentialManager) storeEncrypted(name, credType, value string, metadata map[string]string) error {
	encrypted, err := cm.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	cred := Credential{
		Name:      name,
		Type:      credType,
		Value:     encrypted,
		Metadata:  metadata,
		Encrypted: true,
	}

	return cm.writeCredential(name, &cred)
}

func (cm *CredentialManager) getEncrypted(name string) (*Credential, error) {
	cred, err := cm.readCredential(name)
	if err != nil {
		return nil, err
	}

	if cred.Encrypted {
		decrypted, err := cm.decrypt(cred.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credential: %w", err)
		}
		cred.Value = decrypted
		cred.Encrypted = false
	}

	return cred, nil
}

func (cm *CredentialManager) deleteEncrypted(name string) error {
	path, err := common.ValidatePath(cm.credentialFile(name), cm.credentialsDir())
	if err != nil {
		return fmt.Errorf("invalid credential file path: %w", err)
	}
	return os.Remove(path)
}

func (cm *CredentialManager) listEncrypted() ([]string, error) {
	entries, err := os.ReadDir(cm.credentialsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cred") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".cred"))
		}
	}

	return names, nil
}

// Encryption

func (cm *CredentialManager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
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

func (cm *CredentialManager) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, encryptedData := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// Master key handling

func (cm *CredentialManager) loadOrCreateMasterKey() ([]byte, error) {
	keyPath, err := common.ValidatePath(cm.masterKeyFile(), cm.credentialsDir())
	if err != nil {
		return nil, fmt.Errorf("invalid master key path: %w", err)
	}

	data, err := os.ReadFile(keyPath) // #nosec G304 - path is validated
	if err == nil {
		// The file holds salt followed by key
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	// Derive the key from machine-specific data so credential files do
	// not decrypt when copied to another host.
	key := pbkdf2.Key([]byte(machineFingerprint()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(cm.credentialsDir(), common.DirPermissionSecure); err != nil {
		return nil, err
	}

	keyData := append(salt, key...)
	if err := os.WriteFile(keyPath, keyData, common.FilePermissionSecure); err != nil { // #nosec G304
		return nil, err
	}

	return key, nil
}

// Paths

func (cm *CredentialManager) credentialsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".surveyforge", "credentials")
}

func (cm *CredentialManager) credentialFile(name string) string {
	return filepath.Join(cm.credentialsDir(), name+".cred")
}

func (cm *CredentialManager) masterKeyFile() string {
	return filepath.Join(cm.credentialsDir(), ".master")
}

func (cm *CredentialManager) indexFile() string {
	return filepath.Join(cm.credentialsDir(), ".index")
}

// Credential files

func (cm *CredentialManager) writeCredential(name string, cred *Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.credentialsDir(), common.DirPermissionSecure); err != nil {
		return err
	}

	path, err := common.ValidatePath(cm.credentialFile(name), cm.credentialsDir())
	if err != nil {
		return fmt.Errorf("invalid credential file path: %w", err)
	}
	return os.WriteFile(path, data, common.FilePermissionSecure) // #nosec G304
}

func (cm *CredentialManager) readCredential(name string) (*Credential, error) {
	path, err := common.ValidatePath(cm.credentialFile(name), cm.credentialsDir())
	if err != nil {
		return nil, fmt.Errorf("invalid credential file path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}

	return &cred, nil
}

// Index maintenance for keyring-backed storage

func (cm *CredentialManager) readIndex() ([]string, error) {
	path, err := common.ValidatePath(cm.indexFile(), cm.credentialsDir())
	if err != nil {
		return nil, fmt.Errorf("invalid index file path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var index []string
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	return index, nil
}

func (cm *CredentialManager) updateIndex(name string, add bool) error {
	index, err := cm.readIndex()
	if err != nil {
		return err
	}

	found := false
	newIndex := []string{}
	for _, n := range index {
		if n == name {
			found = true
			if add {
				newIndex = append(newIndex, n)
			}
		} else {
			newIndex = append(newIndex, n)
		}
	}

	if add && !found {
		newIndex = append(newIndex, name)
	}

	data, err := json.Marshal(newIndex)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.credentialsDir(), common.DirPermissionSecure); err != nil {
		return err
	}

	path, err := common.ValidatePath(cm.indexFile(), cm.credentialsDir())
	if err != nil {
		return fmt.Errorf("invalid index file path: %w", err)
	}
	return os.WriteFile(path, data, common.FilePermissionSecure) // #nosec G304
}

// Platform helpers

func isKeyringAvailable() bool {
	// Allow opting out, mainly for CI and headless servers
	if os.Getenv("SURVEYFORGE_USE_KEYCHAIN") == "false" {
		return false
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		// A desktop session usually means a Secret Service backend exists
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
			return true
		}
	}
	return false
}

func machineFingerprint() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}

	data := fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)
	hash := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// ExportCredentials bundles every stored credential into a single
// password-encrypted blob for transfer between machines.
func (cm *CredentialManager) ExportCredentials(password string) ([]byte, error) {
	names, err := cm.ListCredentials()
	if err != nil {
		return nil, err
	}

	credentials := make(map[string]*Credential)
	for _, name := range names {
		cred, err := cm.GetCredential(name)
		if err != nil {
			return nil, err
		}
		credentials[name] = cred
	}

	data, err := json.Marshal(credentials)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)

	// Salt travels with the blob so import can re-derive the key
	return append(salt, ciphertext...), nil
}

// ImportCredentials restores credentials from an exported blob.
func (cm *CredentialManager) ImportCredentials(data []byte, password string) error {
	if len(data) < saltSize {
		return fmt.Errorf("invalid backup data")
	}

	salt := data[:saltSize]
	ciphertext := data[saltSize:]

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("failed to decrypt: invalid password or corrupted data")
	}

	var credentials map[string]*Credential
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return err
	}

	for name, cred := range credentials {
		if err := cm.StoreCredential(name, cred.Type, cred.Value, cred.Metadata); err != nil {
			return fmt.Errorf("failed to import credential %s: %w", name, err)
		}
	}

	return nil
}
