package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	StoreEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	// GetEventForUpdate reads the event and, inside a transaction, locks its row until commit.
	GetEventForUpdate(ctx context.Context, id int64) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id int64) (bool, error)
	FindEvents(ctx context.Context, filter Filter) ([]Event, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// no-op when the transaction was already committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&RepositoryImpl{db: r.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const eventColumns = `id, title, description, start_time, end_time, telegram_user_id`

func (r *RepositoryImpl) StoreEvent(ctx context.Context, event Event) (Event, error) {
	query := `INSERT INTO events (title, description, start_time, end_time, telegram_user_id)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING ` + eventColumns

	stored, err := scanEvent(r.getQueryer().QueryRow(ctx, query,
		event.Title,
		event.Description,
		event.StartTime,
		event.EndTime,
		event.Owner,
	))
	if err != nil {
		err := fmt.Errorf("could not store event: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return stored, nil
}

func (r *RepositoryImpl) GetEvent(ctx context.Context, id int64) (Event, error) {
	return r.getEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

func (r *RepositoryImpl) GetEventForUpdate(ctx context.Context, id int64) (Event, error) {
	return r.getEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
}

func (r *RepositoryImpl) getEvent(ctx context.Context, query string, id int64) (Event, error) {
	event, err := scanEvent(r.getQueryer().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		err := fmt.Errorf("could not get event %d: %w", id, err)
		log.Error(err)
		return Event{}, err
	}
	return event, nil
}

func (r *RepositoryImpl) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	query := `UPDATE events SET title = $1, description = $2, start_time = $3, end_time = $4
				WHERE id = $5
				RETURNING ` + eventColumns

	updated, err := scanEvent(r.getQueryer().QueryRow(ctx, query,
		event.Title,
		event.Description,
		event.StartTime,
		event.EndTime,
		event.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		err := fmt.Errorf("could not update event %d: %w", event.ID, err)
		log.Error(err)
		return Event{}, err
	}
	return updated, nil
}

func (r *RepositoryImpl) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	tag, err := r.getQueryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		err := fmt.Errorf("could not delete event %d: %w", id, err)
		log.Error(err)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RepositoryImpl) FindEvents(ctx context.Context, filter Filter) ([]Event, error) {
	var conditions []string
	var args []any
	if filter.Start != nil {
		args = append(args, *filter.Start)
		conditions = append(conditions, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		conditions = append(conditions, fmt.Sprintf("end_time <= $%d", len(args)))
	}
	if filter.Owner != nil {
		args = append(args, *filter.Owner)
		conditions = append(conditions, fmt.Sprintf("telegram_user_id = $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	if filter.OrderByStart {
		query += ` ORDER BY start_time, id`
	} else {
		query += ` ORDER BY id`
	}

	rows, err := r.getQueryer().Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0, 10)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return events, nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var event Event
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.StartTime,
		&event.EndTime,
		&event.Owner,
	)
	return event, err
}
