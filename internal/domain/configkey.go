package domain

import "time"

// ConfigKey is a named runtime setting. Value holds plaintext in memory;
// stores persist the encrypted form only.
type ConfigKey struct {
	KeyID     string    `json:"id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// EncryptedKey is the persisted form of a ConfigKey.
type EncryptedKey struct {
	KeyID      string    `dynamodbav:"key_id"`
	Name       string    `dynamodbav:"name"`
	Ciphertext string    `dynamodbav:"value"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
	UpdatedAt  time.Time `dynamodbav:"updated_at"`
}
