package models

import "time"

// VaultSecret is an encrypted-at-rest credential value. The plaintext is
// only ever available through the vault service's decrypt operations.
type VaultSecret struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Ciphertext  []byte    `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedAt   time.Time `json:"created_at"`
}
