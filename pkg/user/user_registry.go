package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrMissingExternalId = errors.New("external id is required")

type Registry interface {
	// GetOrCreate returns the user registered for profile.ExternalId, creating it on first contact.
	// Display attributes of an existing user are never overwritten.
	GetOrCreate(ctx context.Context, profile Profile) (User, error)
	Get(ctx context.Context, externalId string) (User, error)
}

type RegistryImpl struct {
	repo Repo
}

func NewRegistry(repo Repo) *RegistryImpl {
	return &RegistryImpl{repo: repo}
}

func (r *RegistryImpl) GetOrCreate(ctx context.Context, profile Profile) (User, error) {
	if profile.ExternalId == "" {
		return User{}, ErrMissingExternalId
	}

	existing, err := r.repo.GetByExternalId(ctx, profile.ExternalId)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("failed to look up user: %w", err)
	}

	log.Infof("Registering new chat user %s", profile.ExternalId)
	err = r.repo.CreateIfAbsent(ctx, User{
		Uid:        uuid.NewString(),
		ExternalId: profile.ExternalId,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to register user: %w", err)
	}

	// re-read so a concurrent first contact resolves to the row that won the insert
	created, err := r.repo.GetByExternalId(ctx, profile.ExternalId)
	if err != nil {
		return User{}, fmt.Errorf("failed to read registered user: %w", err)
	}
	return created, nil
}

func (r *RegistryImpl) Get(ctx context.Context, externalId string) (User, error) {
	return r.repo.GetByExternalId(ctx, externalId)
}
