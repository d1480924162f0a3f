package security

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyforge/internal/common"
)

// useFileBackedStore points HOME at a temp dir and disables the system
// keyring so tests exercise the encrypted file fallback.
func useFileBackedStore(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SURVEYFORGE_USE_KEYCHAIN", "false")
}

func TestCredentialManager(t *testing.T) {
	useFileBackedStore(t)

	t.Run("Create credential manager", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)
		assert.NotNil(t, cm)
		assert.False(t, cm.useKeyring)
		assert.NotNil(t, cm.masterKey)
	})

	t.Run("Store and retrieve credential", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("warehouse-password", "password", "secret123", map[string]string{
			"account": "xy12345",
		})
		require.NoError(t, err)

		cred, err := cm.GetCredential("warehouse-password")
		require.NoError(t, err)
		assert.Equal(t, "warehouse-password", cred.Name)
		assert.Equal(t, "password", cred.Type)
		assert.Equal(t, "secret123", cred.Value)
		assert.Equal(t, "xy12345", cred.Metadata["account"])
	})

	t.Run("List credentials", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("warehouse-password", "password", "pass1", nil)
		require.NoError(t, err)
		err = cm.StoreCredential("repo-token", "api_key", "key123", nil)
		require.NoError(t, err)

		names, err := cm.ListCredentials()
		require.NoError(t, err)
		assert.Contains(t, names, "warehouse-password")
		assert.Contains(t, names, "repo-token")
	})

	t.Run("Delete credential", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("temp-cred", "password", "temp123", nil)
		require.NoError(t, err)

		err = cm.DeleteCredential("temp-cred")
		require.NoError(t, err)

		_, err = cm.GetCredential("temp-cred")
		assert.Error(t, err)
	})

	t.Run("Encryption round trip", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		plaintext := "sensitive data"

		encrypted, err := cm.encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, encrypted)
		assert.NotEmpty(t, encrypted)

		decrypted, err := cm.decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("Export and import credentials", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("export-test1", "password", "pass1", nil)
		require.NoError(t, err)
		err = cm.StoreCredential("export-test2", "api_key", "key2", nil)
		require.NoError(t, err)

		backupPassword := "backup123"
		exportData, err := cm.ExportCredentials(backupPassword)
		require.NoError(t, err)
		assert.NotEmpty(t, exportData)

		err = cm.DeleteCredential("export-test1")
		require.NoError(t, err)
		err = cm.DeleteCredential("export-test2")
		require.NoError(t, err)

		err = cm.ImportCredentials(exportData, backupPassword)
		require.NoError(t, err)

		cred1, err := cm.GetCredential("export-test1")
		require.NoError(t, err)
		assert.Equal(t, "pass1", cred1.Value)

		cred2, err := cm.GetCredential("export-test2")
		require.NoError(t, err)
		assert.Equal(t, "key2", cred2.Value)
	})

	t.Run("Invalid backup password", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("backup-test", "password", "secret", nil)
		require.NoError(t, err)

		exportData, err := cm.ExportCredentials("correct-password")
		require.NoError(t, err)

		err = cm.ImportCredentials(exportData, "wrong-password")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid password")
	})
}

func TestCredentialManagerSecurity(t *testing.T) {
	useFileBackedStore(t)

	t.Run("Master key is stable across instances", func(t *testing.T) {
		cm1, err := NewCredentialManager()
		require.NoError(t, err)

		cm2, err := NewCredentialManager()
		require.NoError(t, err)

		assert.Equal(t, cm1.masterKey, cm2.masterKey)
	})

	t.Run("Credential files are owner-only", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("perm-test", "password", "secret", nil)
		require.NoError(t, err)

		info, err := os.Stat(cm.credentialFile("perm-test"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(common.FilePermissionSecure), info.Mode().Perm())
	})

	t.Run("Tampered credential file fails to load", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("tamper-test", "password", "secret", nil)
		require.NoError(t, err)

		credPath := cm.credentialFile("tamper-test")
		data, err := os.ReadFile(credPath)
		require.NoError(t, err)

		tampered := append(data, []byte("tampered")...)
		err = os.WriteFile(credPath, tampered, common.FilePermissionSecure)
		require.NoError(t, err)

		_, err = cm.GetCredential("tamper-test")
		assert.Error(t, err)
	})
}
