// Package vault keeps provider credentials encrypted at rest and exposes
// them only through narrow decrypt operations. It is reached exclusively
// from trusted server-side code.
package vault

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/hearkenhq/hearken/internal/models"
)

// SecretStore is the persistence boundary for encrypted secrets. Get and
// GetBatch return only rows that exist; a missing id is not an error.
type SecretStore interface {
	Insert(ctx context.Context, secret *models.VaultSecret) error
	Get(ctx context.Context, id string) (*models.VaultSecret, error)
	GetBatch(ctx context.Context, ids []string) ([]models.VaultSecret, error)
	Update(ctx context.Context, id string, ciphertext []byte) error
	Delete(ctx context.Context, id string) error
}

// WriteError wraps a secret-store write failure.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("vault write (%s): %v", e.Op, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// ReadError wraps a secret-store read or decrypt failure.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("vault read (%s): %v", e.Op, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// Observer receives a notification for every vault operation. Implemented
// by the metrics collector.
type Observer interface {
	ObserveVaultOperation(operation string, err error)
}

// Service implements the vault operations over a SecretStore and a Sealer.
type Service struct {
	store    SecretStore
	sealer   *Sealer
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewService constructs a vault service.
func NewService(store SecretStore, sealer *Sealer, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		sealer: sealer,
		logger: logger,
		now:    time.Now,
	}
}

// WithObserver attaches an operation observer and returns the service.
func (s *Service) WithObserver(observer Observer) *Service {
	s.observer = observer
	return s
}

func (s *Service) observe(operation string, err error) {
	if s.observer != nil {
		s.observer.ObserveVaultOperation(operation, err)
	}
}

// StoreSecret encrypts and persists a new secret, returning its id.
func (s *Service) StoreSecret(ctx context.Context, name, value, description string) (id string, err error) {
	defer func() { s.observe("store", err) }()

	ciphertext, err := s.sealer.Seal(value)
	if err != nil {
		return "", &WriteError{Op: "store", Err: err}
	}

	secret := &models.VaultSecret{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Ciphertext:  ciphertext,
		UpdatedAt:   s.now(),
		CreatedAt:   s.now(),
	}

	if err := s.store.Insert(ctx, secret); err != nil {
		return "", &WriteError{Op: "store", Err: err}
	}

	return secret.ID, nil
}

// GetSecret decrypts one secret. found is false when the id is unknown,
// which is a defined non-error outcome; every other failure is a ReadError.
func (s *Service) GetSecret(ctx context.Context, id string) (value string, found bool, err error) {
	defer func() { s.observe("get", err) }()

	secret, err := s.store.Get(ctx, id)
	if err != nil {
		return "", false, &ReadError{Op: "get", Err: err}
	}
	if secret == nil {
		return "", false, nil
	}

	plaintext, err := s.sealer.Open(secret.Ciphertext)
	if err != nil {
		return "", false, &ReadError{Op: "get", Err: err}
	}

	return plaintext, true, nil
}

// UpdateSecret rotates a secret's value in place.
func (s *Service) UpdateSecret(ctx context.Context, id, value string) (err error) {
	defer func() { s.observe("update", err) }()

	ciphertext, err := s.sealer.Seal(value)
	if err != nil {
		return &WriteError{Op: "update", Err: err}
	}

	if err := s.store.Update(ctx, id, ciphertext); err != nil {
		return &WriteError{Op: "update", Err: err}
	}

	return nil
}

// DeleteSecret removes a secret permanently.
func (s *Service) DeleteSecret(ctx context.Context, id string) (err error) {
	defer func() { s.observe("delete", err) }()

	if err := s.store.Delete(ctx, id); err != nil {
		return &WriteError{Op: "delete", Err: err}
	}
	return nil
}

// GetSecretsBatch decrypts many secrets in one store round trip. Unknown
// ids are simply absent from the result.
func (s *Service) GetSecretsBatch(ctx context.Context, ids []string) (values map[string]string, err error) {
	defer func() { s.observe("batch", err) }()

	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	secrets, err := s.store.GetBatch(ctx, ids)
	if err != nil {
		return nil, &ReadError{Op: "batch", Err: err}
	}

	values = make(map[string]string, len(secrets))
	for _, secret := range secrets {
		plaintext, err := s.sealer.Open(secret.Ciphertext)
		if err != nil {
			return nil, &ReadError{Op: "batch", Err: fmt.Errorf("secret %s: %w", secret.ID, err)}
		}
		values[secret.ID] = plaintext
	}

	return values, nil
}
