package warehouse

import (
	"fmt"
	"os"
	"strings"

	"surveyforge/internal/security"
	"surveyforge/pkg/errors"
)

// credentialSource resolves stored warehouse secrets. The credential
// manager satisfies it; tests substitute a fake.
type credentialSource interface {
	GetCredential(name string) (*security.Credential, error)
}

func (s *Service) credentials() (credentialSource, error) {
	if s.creds == nil {
		manager, err := security.NewCredentialManager()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCredentialNotFound, "Failed to open credential manager")
		}
		s.creds = manager
	}
	return s.creds, nil
}

// resolvePassword expands the configured password reference. Supported
// forms: plain value, "${ENV_VAR}", and "keyring:<name>".
func (s *Service) resolvePassword() (string, error) {
	pass := s.config.Password
	switch {
	case strings.HasPrefix(pass, "keyring:"):
		name := strings.TrimPrefix(pass, "keyring:")
		source, err := s.credentials()
		if err != nil {
			return "", err
		}
		cred, err := source.GetCredential(name)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeCredentialNotFound, "Stored credential not found").
				WithContext("credential", name).
				WithSuggestions(fmt.Sprintf("Run 'surveyforge credential set %s' to store the warehouse password", name))
		}
		return cred.Value, nil

	case strings.HasPrefix(pass, "${") && strings.HasSuffix(pass, "}"):
		name := strings.TrimSuffix(strings.TrimPrefix(pass, "${"), "}")
		value := os.Getenv(name)
		if value == "" {
			return "", errors.New(errors.ErrCodeCredentialNotFound, "Environment variable is not set").
				WithContext("variable", name).
				WithSuggestions(fmt.Sprintf("Export %s before running", name))
		}
		return value, nil

	default:
		return pass, nil
	}
}
