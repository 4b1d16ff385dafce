package event

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/calbot/calbot/internal/test_utils"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *test_utils.PostgresDB

func TestMain(m *testing.M) {
	var err error
	testDB, err = test_utils.StartPostgres()
	if err != nil {
		log.Warnf("postgres repository tests disabled: %v", err)
	}
	code := m.Run()
	if testDB != nil {
		testDB.Terminate()
	}
	os.Exit(code)
}

func setupRepoTest(t *testing.T) (context.Context, *RepositoryImpl) {
	if testDB == nil {
		t.Skip("postgres container not available")
	}
	ctx := context.Background()
	pool, err := testDB.Open(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Close()
		require.NoError(t, testDB.Restore(ctx))
	})
	return ctx, NewRepository(pool)
}

func TestRepositoryImpl_StoreAndGet(t *testing.T) {
	ctx, repo := setupRepoTest(t)
	start := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

	stored, err := repo.StoreEvent(ctx, Event{
		Title:       "Meeting",
		Description: "sync",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Owner:       strPtr("42"),
	})
	require.NoError(t, err)
	assert.NotZero(t, stored.ID)

	fetched, err := repo.GetEvent(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meeting", fetched.Title)
	assert.Equal(t, "sync", fetched.Description)
	assert.True(t, fetched.StartTime.Equal(start))
	assert.True(t, fetched.EndTime.Equal(start.Add(time.Hour)))
	require.NotNil(t, fetched.Owner)
	assert.Equal(t, "42", *fetched.Owner)

	_, err = repo.GetEvent(ctx, stored.ID+1)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestRepositoryImpl_RejectsInvalidRange(t *testing.T) {
	ctx, repo := setupRepoTest(t)
	start := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.StoreEvent(ctx, Event{Title: "Meeting", StartTime: start, EndTime: start})

	assert.Error(t, err)
}

func TestRepositoryImpl_FindEvents(t *testing.T) {
	ctx, repo := setupRepoTest(t)
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range []Event{
		{Title: "late", StartTime: base.Add(20 * time.Hour), EndTime: base.Add(21 * time.Hour), Owner: strPtr("1")},
		{Title: "early", StartTime: base.Add(8 * time.Hour), EndTime: base.Add(9 * time.Hour), Owner: strPtr("1")},
		{Title: "other", StartTime: base.Add(12 * time.Hour), EndTime: base.Add(13 * time.Hour), Owner: strPtr("2")},
		{Title: "unowned", StartTime: base.Add(14 * time.Hour), EndTime: base.Add(15 * time.Hour)},
	} {
		_, err := repo.StoreEvent(ctx, e)
		require.NoError(t, err)
	}

	t.Run("should list in id order without ordering flag", func(t *testing.T) {
		events, err := repo.FindEvents(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"late", "early", "other", "unowned"}, titles(events))
	})

	t.Run("should filter by owner ordered by start", func(t *testing.T) {
		events, err := repo.FindEvents(ctx, Filter{Owner: strPtr("1"), OrderByStart: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"early", "late"}, titles(events))
	})

	t.Run("should filter by start and end", func(t *testing.T) {
		events, err := repo.FindEvents(ctx, Filter{
			Start:        timePtr(base.Add(10 * time.Hour)),
			End:          timePtr(base.Add(15 * time.Hour)),
			OrderByStart: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"other", "unowned"}, titles(events))
	})
}

func TestRepositoryImpl_UpdateAndDelete(t *testing.T) {
	ctx, repo := setupRepoTest(t)
	start := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	stored, err := repo.StoreEvent(ctx, Event{Title: "Meeting", StartTime: start, EndTime: start.Add(time.Hour), Owner: strPtr("5")})
	require.NoError(t, err)

	stored.Title = "Retro"
	updated, err := repo.UpdateEvent(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, "Retro", updated.Title)
	assert.Equal(t, "5", *updated.Owner)

	deleted, err := repo.DeleteEvent(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteEvent(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.UpdateEvent(ctx, stored)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventService_ConcurrentUpdatesSerialize(t *testing.T) {
	ctx, repo := setupRepoTest(t)
	service := NewEventService(repo, nil)
	start := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	created, err := service.Create(ctx, NewEvent{Title: "Meeting", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)

	// each update moves the end by one hour relative to what it read, so lost updates would show up
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.WithTransaction(ctx, func(tx Repository) error {
				current, err := tx.GetEventForUpdate(ctx, created.ID)
				if err != nil {
					return err
				}
				current.EndTime = current.EndTime.Add(time.Hour)
				_, err = tx.UpdateEvent(ctx, current)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, final.EndTime.Equal(start.Add((workers+1)*time.Hour)))
}
