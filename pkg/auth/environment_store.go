package auth

import (
	"os"
	"time"
)

const (
	envIdentity = "SPACETRACK_IDENTITY"
	envPassword = "SPACETRACK_PASSWORD"
)

// EnvironmentStore reads a single account from SPACETRACK_IDENTITY and
// SPACETRACK_PASSWORD. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. An empty identity matches it;
// any other identity must equal SPACETRACK_IDENTITY.
func (e *EnvironmentStore) Retrieve(identity string) (*Account, error) {
	envID := os.Getenv(envIdentity)
	password := os.Getenv(envPassword)

	if envID == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if identity != "" && identity != envID {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Identity:     envID,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(identity string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(identity string) bool {
	_, err := e.Retrieve(identity)
	return err == nil
}
