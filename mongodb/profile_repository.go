package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/gtgram/domain"
)

// ProfileRepository implements domain.ProfileRepository on MongoDB.
type ProfileRepository struct {
	db       *mongo.Database
	profiles *mongo.Collection
}

// NewProfileRepository creates a new ProfileRepository and ensures indexes.
func NewProfileRepository(ctx context.Context, db *mongo.Database) (*ProfileRepository, error) {
	repo := &ProfileRepository{
		db:       db,
		profiles: db.Collection(ProfilesCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		// Index creation commonly fails when compatible indexes already
		// exist; not fatal for startup.
		log.Warn().Err(err).Msg("Failed to create profile indexes")
	}
	return repo, nil
}

func (r *ProfileRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(false),
		},
		{
			Keys:    bson.D{{Key: "joined_at", Value: -1}},
			Options: options.Index().SetUnique(false),
		},
	}

	_, err := r.profiles.Indexes().CreateMany(ctx, indexModels, options.CreateIndexes())
	if err != nil {
		return fmt.Errorf("failed to create indexes for profiles collection: %w", err)
	}
	log.Info().Msg("Indexes for profiles collection ensured.")
	return nil
}

// GetProfileByID retrieves a profile document by the user's stable ID.
func (r *ProfileRepository) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
		}
		log.Error().Err(err).Str("id", id).Msg("Error getting profile by ID from MongoDB")
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return &profile, nil
}

// CreateProfile inserts a new profile document.
func (r *ProfileRepository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	if profile.ID == "" {
		return fmt.Errorf("%w: profile ID is required", domain.ErrInvalidSessionData)
	}
	if profile.JoinedAt.IsZero() {
		profile.JoinedAt = time.Now().UTC()
	}
	profile.UpdatedAt = time.Now().UTC()
	if profile.Followers == nil {
		profile.Followers = []string{}
	}
	if profile.Following == nil {
		profile.Following = []string{}
	}

	_, err := r.profiles.InsertOne(ctx, profile)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("profile already exists for %s", profile.ID)
		}
		log.Error().Err(err).Str("id", profile.ID).Msg("Error creating profile in MongoDB")
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return nil
}

// UpdateProfile applies a partial update to an existing document.
func (r *ProfileRepository) UpdateProfile(ctx context.Context, id string, fields map[string]any) error {
	if id == "" {
		return fmt.Errorf("%w: profile ID is required for update", domain.ErrInvalidSessionData)
	}
	update := bson.M{}
	for k, v := range fields {
		update[k] = v
	}
	update["updated_at"] = time.Now().UTC()

	result, err := r.profiles.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Error updating profile in MongoDB")
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
	}
	return nil
}

// Ensure interface compliance
var _ domain.ProfileRepository = (*ProfileRepository)(nil)
