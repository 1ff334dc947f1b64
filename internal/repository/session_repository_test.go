package repository_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dinory-ai/internal/models"
	"dinory-ai/internal/repository"
)

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Get on a missing session fails", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())

		_, err := repo.Get(ctx, "1:ghost")

		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("Save and Get round-trip", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())
		session := models.NewStorySession("1:forest", "forest", 1, "지우")
		session.Title = "숲속의 약속"

		require.NoError(t, repo.Save(ctx, session))

		stored, err := repo.Get(ctx, "1:forest")
		require.NoError(t, err)
		assert.Equal(t, "숲속의 약속", stored.Title)
		assert.Equal(t, int64(1), stored.ChildID)
	})

	t.Run("Save without an id is rejected", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())

		assert.ErrorIs(t, repo.Save(ctx, nil), models.ErrValidation)
		assert.ErrorIs(t, repo.Save(ctx, &models.StorySession{}), models.ErrValidation)
	})

	t.Run("Returned sessions are isolated copies", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())
		session := models.NewStorySession("1:forest", "forest", 1, "지우")
		require.NoError(t, repo.Save(ctx, session))

		// Mutating the original or a returned copy must not leak into the store.
		session.Title = "변경된 제목"
		first, err := repo.Get(ctx, "1:forest")
		require.NoError(t, err)
		first.Title = "또 다른 제목"
		require.NoError(t, first.AddAbility(models.AbilityCourage, 10))

		second, err := repo.Get(ctx, "1:forest")
		require.NoError(t, err)
		assert.Empty(t, second.Title)
		assert.Equal(t, 0, second.Totals()[models.AbilityCourage])
	})

	t.Run("Mutate persists the applied change", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, models.NewStorySession("1:forest", "forest", 1, "지우")))

		updated, err := repo.Mutate(ctx, "1:forest", func(s *models.StorySession) error {
			return s.AddAbility(models.AbilityCourage, 12)
		})

		require.NoError(t, err)
		assert.Equal(t, 12, updated.Totals()[models.AbilityCourage])

		stored, err := repo.Get(ctx, "1:forest")
		require.NoError(t, err)
		assert.Equal(t, 12, stored.Totals()[models.AbilityCourage])
	})

	t.Run("Mutate error aborts the write", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, models.NewStorySession("1:forest", "forest", 1, "지우")))

		_, err := repo.Mutate(ctx, "1:forest", func(s *models.StorySession) error {
			return s.AddAbility(models.AbilityCourage, -5)
		})
		assert.ErrorIs(t, err, models.ErrValidation)

		stored, err := repo.Get(ctx, "1:forest")
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Totals()[models.AbilityCourage])
	})

	t.Run("Mutate on a missing session fails", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())

		_, err := repo.Mutate(ctx, "1:ghost", func(s *models.StorySession) error { return nil })

		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("Concurrent mutations are serialized", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, models.NewStorySession("1:forest", "forest", 1, "지우")))

		const workers = 50
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				_, err := repo.Mutate(ctx, "1:forest", func(s *models.StorySession) error {
					return s.AddAbility(models.AbilityFriendship, 1)
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, err := repo.Get(ctx, "1:forest")
		require.NoError(t, err)
		assert.Equal(t, workers, stored.Totals()[models.AbilityFriendship])
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, models.NewStorySession("1:forest", "forest", 1, "지우")))

		require.NoError(t, repo.Delete(ctx, "1:forest"))
		require.NoError(t, repo.Delete(ctx, "1:forest"))

		_, err := repo.Get(ctx, "1:forest")
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})
}
