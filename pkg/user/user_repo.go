package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repo interface {
	// CreateIfAbsent inserts the user unless one with the same external id exists.
	// Existing rows are left untouched.
	CreateIfAbsent(ctx context.Context, user User) error
	GetByExternalId(ctx context.Context, externalId string) (User, error)
}

type UserRepoImpl struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepoImpl {
	return &UserRepoImpl{db: db}
}

func (u *UserRepoImpl) CreateIfAbsent(ctx context.Context, user User) error {
	query := `INSERT INTO users (uid, external_id, username, first_name, last_name)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (external_id) DO NOTHING`
	_, err := u.db.Exec(ctx, query,
		user.Uid,
		user.ExternalId,
		user.Username,
		user.FirstName,
		user.LastName,
	)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (u *UserRepoImpl) GetByExternalId(ctx context.Context, externalId string) (User, error) {
	query := `SELECT id, uid::text, external_id, username, first_name, last_name, created_at
				FROM users WHERE external_id = $1`
	var user User
	err := u.db.QueryRow(ctx, query, externalId).Scan(
		&user.Id,
		&user.Uid,
		&user.ExternalId,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debugf("user with external id %s not found", externalId)
		return User{}, ErrUserNotFound
	} else if err != nil {
		log.Errorf("failed to get user: %v", err)
		return User{}, err
	}
	return user, nil
}
