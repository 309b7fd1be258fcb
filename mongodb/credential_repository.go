package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/internal/identity"
)

// CredentialsCollection holds the email/password login credentials,
// keyed by the account's stable user ID.
const CredentialsCollection = "credentials"

// credentialDoc is the persisted shape of a stored credential.
type credentialDoc struct {
	UserID       string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	DisplayName  string    `bson:"display_name,omitempty"`
	PhoneNumber  string    `bson:"phone_number,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

// CredentialRepository implements identity.CredentialStore on MongoDB.
type CredentialRepository struct {
	db    *mongo.Database
	creds *mongo.Collection
}

// NewCredentialRepository creates a new CredentialRepository and ensures
// the unique email index.
func NewCredentialRepository(ctx context.Context, db *mongo.Database) (*CredentialRepository, error) {
	repo := &CredentialRepository{
		db:    db,
		creds: db.Collection(CredentialsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		// Index creation commonly fails when compatible indexes already
		// exist; not fatal for startup.
		log.Warn().Err(err).Msg("Failed to create credential indexes")
	}
	return repo, nil
}

func (r *CredentialRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.creds.Indexes().CreateMany(ctx, indexModels, options.CreateIndexes())
	if err != nil {
		return fmt.Errorf("failed to create indexes for credentials collection: %w", err)
	}
	log.Info().Msg("Indexes for credentials collection ensured.")
	return nil
}

// Lookup retrieves a credential by email.
func (r *CredentialRepository) Lookup(ctx context.Context, email string) (*identity.StoredCredential, error) {
	var doc credentialDoc
	err := r.creds.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: no account for %s", domain.ErrInvalidCredential, email)
		}
		log.Error().Err(err).Str("email", email).Msg("Error getting credential from MongoDB")
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return &identity.StoredCredential{
		UserID:       doc.UserID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		DisplayName:  doc.DisplayName,
		PhoneNumber:  doc.PhoneNumber,
	}, nil
}

// Register inserts a new credential document. The unique email index
// turns concurrent registrations of the same address into duplicate-key
// errors.
func (r *CredentialRepository) Register(ctx context.Context, cred *identity.StoredCredential) error {
	if cred.UserID == "" {
		return fmt.Errorf("%w: credential user ID is required", domain.ErrInvalidSessionData)
	}
	doc := credentialDoc{
		UserID:       cred.UserID,
		Email:        strings.ToLower(cred.Email),
		PasswordHash: cred.PasswordHash,
		DisplayName:  cred.DisplayName,
		PhoneNumber:  cred.PhoneNumber,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := r.creds.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, cred.Email)
		}
		log.Error().Err(err).Str("email", cred.Email).Msg("Error creating credential in MongoDB")
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return nil
}

// Ensure interface compliance
var _ identity.CredentialStore = (*CredentialRepository)(nil)
