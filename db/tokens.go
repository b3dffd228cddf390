package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// oauthToken is the stored shape of one provider's credentials, keyed by
// provider. encryption_version 1 marks AES-256-GCM ciphertext, 0 plaintext
// (pre-encryption deployments keep working after ENCRYPTION_KEY is set).
type oauthToken struct {
	Provider          string    `bson:"provider"`
	AccessToken       string    `bson:"access_token"`
	RefreshToken      string    `bson:"refresh_token,omitempty"`
	ExpiresAt         time.Time `bson:"expires_at,omitempty"`
	Scope             string    `bson:"scope,omitempty"`
	EncryptionVersion int       `bson:"encryption_version"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// UpsertOAuthToken stores or updates the token for a provider (e.g. twitch).
// Tokens are encrypted before storage when ENCRYPTION_KEY is configured.
func (s *Store) UpsertOAuthToken(ctx context.Context, provider, access, refresh string, expiry time.Time, scope string) error {
	doc := oauthToken{
		Provider:     provider,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiry,
		Scope:        scope,
		UpdatedAt:    time.Now().UTC(),
	}
	if s.encryptor != nil {
		doc.EncryptionVersion = 1
		var err error
		if access != "" {
			if doc.AccessToken, err = s.encryptor.EncryptString(access); err != nil {
				return fmt.Errorf("encrypt access token: %w", err)
			}
		}
		if refresh != "" {
			if doc.RefreshToken, err = s.encryptor.EncryptString(refresh); err != nil {
				return fmt.Errorf("encrypt refresh token: %w", err)
			}
		}
	}
	_, err := s.db.Collection(CollTokens).ReplaceOne(ctx,
		bson.D{{Key: "provider", Value: provider}}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert oauth token: %w", err)
	}
	return nil
}

// GetOAuthToken retrieves a provider's stored token; zero values when none is
// stored. Encrypted tokens are decrypted transparently; a ciphertext row with
// no ENCRYPTION_KEY configured is an error rather than garbage credentials.
func (s *Store) GetOAuthToken(ctx context.Context, provider string) (access, refresh string, expiry time.Time, scope string, err error) {
	var doc oauthToken
	err = s.db.Collection(CollTokens).FindOne(ctx, bson.D{{Key: "provider", Value: provider}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", "", time.Time{}, "", nil
	}
	if err != nil {
		return "", "", time.Time{}, "", fmt.Errorf("get oauth token: %w", err)
	}

	access, refresh, expiry, scope = doc.AccessToken, doc.RefreshToken, doc.ExpiresAt, doc.Scope
	if doc.EncryptionVersion == 1 {
		if s.encryptor == nil {
			return "", "", time.Time{}, "", fmt.Errorf("token for %s is encrypted but ENCRYPTION_KEY is not configured", provider)
		}
		if access != "" {
			if access, err = s.encryptor.DecryptString(access); err != nil {
				return "", "", time.Time{}, "", fmt.Errorf("decrypt access token: %w", err)
			}
		}
		if refresh != "" {
			if refresh, err = s.encryptor.DecryptString(refresh); err != nil {
				return "", "", time.Time{}, "", fmt.Errorf("decrypt refresh token: %w", err)
			}
		}
	}
	return access, refresh, expiry, scope, nil
}
