package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// sensitiveKeywords classify which credential fields must be vaulted.
// Matching is a case-insensitive substring test on the field name.
var sensitiveKeywords = []string{"key", "secret", "token", "password", "credential", "auth"}

// IsSensitiveField reports whether a credential field name indicates a
// value that must never be stored in plaintext.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// StoreConnectorCredentials vaults every sensitive, non-empty field of a
// new connector and returns the field->secret-id mapping to persist on the
// connector config. Non-sensitive and empty fields are skipped.
func (s *Service) StoreConnectorCredentials(ctx context.Context, connectorID string, fields map[string]string) (map[string]string, error) {
	refs := make(map[string]string)

	for field, value := range fields {
		if value == "" || !IsSensitiveField(field) {
			continue
		}

		id, err := s.StoreSecret(ctx, connectorSecretName(connectorID, field), value, "connector credential")
		if err != nil {
			return nil, err
		}
		refs[field] = id
	}

	return refs, nil
}

// GetConnectorCredentials batch-decrypts a connector's secrets and
// re-associates them by field name. Missing or empty values are omitted.
func (s *Service) GetConnectorCredentials(ctx context.Context, refs map[string]string) (map[string]string, error) {
	ids := make([]string, 0, len(refs))
	for _, id := range refs {
		ids = append(ids, id)
	}

	values, err := s.GetSecretsBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	creds := make(map[string]string, len(refs))
	for field, id := range refs {
		if value, ok := values[id]; ok && value != "" {
			creds[field] = value
		}
	}

	return creds, nil
}

// UpdateConnectorCredentials reconciles a connector's credentials with a
// new field map: rotate in place where a vault id exists, create where one
// does not, delete and unmap where the new value is empty. Repeating the
// same input yields the same mapping with no new vault ids.
func (s *Service) UpdateConnectorCredentials(ctx context.Context, connectorID string, fields map[string]string, existing map[string]string) (map[string]string, error) {
	updated := make(map[string]string, len(existing))
	for field, id := range existing {
		updated[field] = id
	}

	for field, value := range fields {
		if !IsSensitiveField(field) {
			continue
		}

		id, mapped := updated[field]

		if value == "" {
			if mapped {
				if err := s.DeleteSecret(ctx, id); err != nil {
					return nil, err
				}
				delete(updated, field)
			}
			continue
		}

		if mapped {
			if err := s.UpdateSecret(ctx, id, value); err != nil {
				return nil, err
			}
			continue
		}

		newID, err := s.StoreSecret(ctx, connectorSecretName(connectorID, field), value, "connector credential")
		if err != nil {
			return nil, err
		}
		updated[field] = newID
	}

	return updated, nil
}

// DeleteConnectorCredentials deletes every referenced secret. Best effort:
// failures are collected and returned joined so a connector delete can log
// them and still proceed.
func (s *Service) DeleteConnectorCredentials(ctx context.Context, refs map[string]string) error {
	var errs []error

	for field, id := range refs {
		if err := s.DeleteSecret(ctx, id); err != nil {
			s.logger.Warn("failed to delete connector secret",
				"field", field,
				"secret_id", id,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	return errors.Join(errs...)
}

func connectorSecretName(connectorID, field string) string {
	return fmt.Sprintf("connector/%s/%s", connectorID, field)
}
