package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dinory-ai/internal/ai"
	"dinory-ai/internal/mocks"
	"dinory-ai/internal/models"
	"dinory-ai/internal/repository"
	"dinory-ai/internal/service"
)

// newNarrativeService wires the orchestrator on an empty in-memory store
// with the disabled AI client, so every scene takes the deterministic path.
func newNarrativeService(history *mocks.MockHistoryClient) *service.NarrativeService {
	log := zap.NewNop()
	aiClient := ai.NewDisabledClient()
	return service.NewNarrativeService(
		repository.NewMemorySessionRepository(log),
		repository.NewCharacterStore(),
		service.NewSceneSequencer(aiClient, log),
		service.NewChoiceClassifier(aiClient, log),
		history,
		log,
	)
}

func TestGenerateSceneOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("Scene numbers outside the story range are rejected", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		for _, number := range []int{0, -1, models.MaxScenes + 1} {
			_, err := narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 1, SceneNumber: number})
			assert.ErrorIs(t, err, models.ErrValidation, "scene %d", number)
		}
	})

	t.Run("Missing story id is rejected", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		_, err := narrative.GenerateScene(ctx, service.SceneParams{ChildID: 1, SceneNumber: 1})

		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("Opening scene starts a session with title and descriptor", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		payload, err := narrative.GenerateScene(ctx, service.SceneParams{
			StoryID: "forest", ChildID: 1, ChildName: "지우", SeedTitle: "숲속 친구들", SceneNumber: 1,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, payload.Scene.SceneNumber)
		assert.NotEmpty(t, payload.Title)
		assert.NotEmpty(t, payload.CharacterDescriptor)
		assert.False(t, payload.Terminal)

		session, err := narrative.Session(ctx, 1, "forest")
		require.NoError(t, err)
		assert.Equal(t, 1, session.CurrentSceneNumber)
		assert.Equal(t, payload.Title, session.Title)
	})

	t.Run("Skipping ahead is rejected", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		_, err := narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 1, SceneNumber: 1})
		require.NoError(t, err)

		_, err = narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 1, SceneNumber: 3})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("Requesting a committed scene replays it without regeneration", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		first, err := narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 1, SceneNumber: 1})
		require.NoError(t, err)
		_, err = narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 1, SceneNumber: 2})
		require.NoError(t, err)

		replayed, err := narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 1, SceneNumber: 1})
		require.NoError(t, err)
		assert.Equal(t, first.Scene, replayed.Scene)

		session, err := narrative.Session(ctx, 1, "forest")
		require.NoError(t, err)
		assert.Equal(t, 2, session.CurrentSceneNumber)
	})

	t.Run("Full story run terminates at the final scene", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		var payload service.ScenePayload
		var err error
		for number := 1; number <= models.MaxScenes; number++ {
			payload, err = narrative.GenerateScene(ctx, service.SceneParams{
				StoryID: "forest", ChildID: 1, ChildName: "지우", SceneNumber: number,
			})
			require.NoError(t, err, "scene %d", number)
		}

		assert.True(t, payload.Terminal)
		assert.True(t, payload.Scene.IsEnding)
		assert.Empty(t, payload.Scene.Choices)

		_, err = narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 1, SceneNumber: models.MaxScenes + 1})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("Character descriptor from scene one is reused verbatim", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		first, err := narrative.GenerateScene(ctx, service.SceneParams{
			StoryID: "forest", ChildID: 1, ChildName: "지우", SceneNumber: 1,
		})
		require.NoError(t, err)
		descriptor := first.CharacterDescriptor
		require.NotEmpty(t, descriptor)

		for number := 2; number <= 4; number++ {
			payload, err := narrative.GenerateScene(ctx, service.SceneParams{
				StoryID: "forest", ChildID: 1, ChildName: "지우", SceneNumber: number,
			})
			require.NoError(t, err)
			assert.Contains(t, payload.Scene.ImagePrompt, descriptor, "scene %d", number)
		}

		session, err := narrative.Session(ctx, 1, "forest")
		require.NoError(t, err)
		assert.Equal(t, descriptor, session.CharacterDescriptor)
	})

	t.Run("Sessions are isolated per child and story", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		_, err := narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 1, SceneNumber: 1})
		require.NoError(t, err)
		_, err = narrative.GenerateScene(ctx, service.SceneParams{StoryID: "forest", ChildID: 2, SceneNumber: 1})
		require.NoError(t, err)

		_, err = narrative.Session(ctx, 1, "forest")
		assert.NoError(t, err)
		_, err = narrative.Session(ctx, 3, "forest")
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})
}

func TestSessionRehydration(t *testing.T) {
	ctx := context.Background()

	t.Run("Lost session is rehydrated from the completion record", func(t *testing.T) {
		mockHistory := new(mocks.MockHistoryClient)
		mockHistory.On("GetStoryCompletions", mock.Anything, int64(1), mock.Anything).Return([]models.StoryCompletion{
			{
				StoryID:             "forest",
				StoryTitle:          "숲속의 약속",
				ChildName:           "지우",
				CharacterDescriptor: "노란 우비를 입은 아이",
				TotalCourage:        12,
				TotalFriendship:     10,
				Choices: []models.ChoiceRecord{
					{SceneNumber: 1, ChoiceText: "용기를 내요", AbilityType: models.AbilityCourage},
					{SceneNumber: 2, ChoiceText: "친구와 함께 가요", AbilityType: models.AbilityFriendship},
				},
			},
		}, nil)
		narrative := newNarrativeService(mockHistory)

		payload, err := narrative.GenerateScene(ctx, service.SceneParams{
			StoryID: "forest", ChildID: 1, ChildName: "지우", SceneNumber: 4,
		})

		require.NoError(t, err)
		assert.Equal(t, 4, payload.Scene.SceneNumber)
		assert.Equal(t, 12, payload.AbilityTotals[models.AbilityCourage])
		assert.Equal(t, 10, payload.AbilityTotals[models.AbilityFriendship])

		session, err := narrative.Session(ctx, 1, "forest")
		require.NoError(t, err)
		assert.Equal(t, "숲속의 약속", session.Title)
		assert.Equal(t, "노란 우비를 입은 아이", session.CharacterDescriptor)
		assert.Equal(t, 4, session.CurrentSceneNumber)
	})

	t.Run("Without a completion record the caller's choices carry the story", func(t *testing.T) {
		mockHistory := new(mocks.MockHistoryClient)
		mockHistory.On("GetStoryCompletions", mock.Anything, int64(1), mock.Anything).Return(nil, errors.New("backend down"))
		narrative := newNarrativeService(mockHistory)

		payload, err := narrative.GenerateScene(ctx, service.SceneParams{
			StoryID: "forest", ChildID: 1, ChildName: "지우", SceneNumber: 3,
			PreviousChoices: []models.ChoiceRecord{
				{SceneNumber: 1, ChoiceText: "용기를 내요", AbilityType: models.AbilityCourage},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, 3, payload.Scene.SceneNumber)
		assert.Equal(t, 0, payload.AbilityTotals[models.AbilityCourage])

		session, err := narrative.Session(ctx, 1, "forest")
		require.NoError(t, err)
		require.Len(t, session.Choices, 1)
		assert.Equal(t, models.AbilityCourage, session.Choices[0].AbilityType)
	})

	t.Run("Scene one always starts a fresh story", func(t *testing.T) {
		mockHistory := new(mocks.MockHistoryClient)
		narrative := newNarrativeService(mockHistory)

		payload, err := narrative.GenerateScene(ctx, service.SceneParams{
			StoryID: "forest", ChildID: 1, ChildName: "지우", SceneNumber: 1,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, payload.Scene.SceneNumber)
		for _, ability := range models.AllAbilities {
			assert.Equal(t, 0, payload.AbilityTotals[ability])
		}
		mockHistory.AssertNotCalled(t, "GetStoryCompletions", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSubmitChoice(t *testing.T) {
	ctx := context.Background()

	startStory := func(t *testing.T, narrative *service.NarrativeService) {
		t.Helper()
		_, err := narrative.GenerateScene(ctx, service.SceneParams{
			StoryID: "forest", ChildID: 1, ChildName: "지우", SceneNumber: 1,
		})
		require.NoError(t, err)
	}

	t.Run("Positive choice grows the ledger", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))
		startStory(t, narrative)

		result, err := narrative.SubmitChoice(ctx, service.ChoiceParams{
			StoryID: "forest", ChildID: 1, SceneNumber: 1,
			ChoiceText: "무서워도 도전해볼게", Custom: true,
		})

		require.NoError(t, err)
		assert.False(t, result.Classification.IsNegative)
		assert.Equal(t, models.AbilityCourage, result.Classification.AbilityType)
		assert.Equal(t, 14, result.Classification.AbilityPoints)
		assert.Equal(t, 14, result.AbilityTotals[models.AbilityCourage])
	})

	t.Run("Negative choice leaves the ledger untouched", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))
		startStory(t, narrative)

		result, err := narrative.SubmitChoice(ctx, service.ChoiceParams{
			StoryID: "forest", ChildID: 1, SceneNumber: 1, ChoiceText: "동생을 때려줄거야",
		})

		require.NoError(t, err)
		assert.True(t, result.Classification.IsNegative)
		assert.Equal(t, 0, result.Classification.AbilityPoints)
		for _, ability := range models.AllAbilities {
			assert.Equal(t, 0, result.AbilityTotals[ability])
		}

		session, err := narrative.Session(ctx, 1, "forest")
		require.NoError(t, err)
		assert.Empty(t, session.Choices)
	})

	t.Run("Totals only ever grow across submissions", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))
		startStory(t, narrative)

		var lastTotal int
		choices := []string{"무서워도 도전해볼게", "동생을 때려줄거야", "친구랑 같이 갈래"}
		for i, text := range choices {
			result, err := narrative.SubmitChoice(ctx, service.ChoiceParams{
				StoryID: "forest", ChildID: 1, SceneNumber: 1, ChoiceText: text,
			})
			require.NoError(t, err, "choice %d", i)

			var total int
			for _, points := range result.AbilityTotals {
				total += points
			}
			assert.GreaterOrEqual(t, total, lastTotal)
			lastTotal = total
		}
	})

	t.Run("Empty choice text is rejected", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		_, err := narrative.SubmitChoice(ctx, service.ChoiceParams{StoryID: "forest", ChildID: 1, SceneNumber: 1})

		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("Choice on a lost opening scene starts a fresh session", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))

		result, err := narrative.SubmitChoice(ctx, service.ChoiceParams{
			StoryID: "ghost", ChildID: 1, SceneNumber: 1, ChoiceText: "용기를 내서 도전해요",
		})

		require.NoError(t, err)
		assert.Equal(t, models.AbilityCourage, result.Classification.AbilityType)
		assert.Equal(t, result.Classification.AbilityPoints, result.AbilityTotals[models.AbilityCourage])

		session, err := narrative.Session(ctx, 1, "ghost")
		require.NoError(t, err)
		require.Len(t, session.Choices, 1)
	})

	t.Run("Choice on a lost session rehydrates from the completion record", func(t *testing.T) {
		mockHistory := new(mocks.MockHistoryClient)
		mockHistory.On("GetStoryCompletions", mock.Anything, int64(1), mock.Anything).Return([]models.StoryCompletion{
			{
				StoryID:      "forest",
				StoryTitle:   "숲속의 약속",
				ChildName:    "지우",
				TotalEmpathy: 10,
				Choices: []models.ChoiceRecord{
					{SceneNumber: 1, ChoiceText: "친구를 위로해요", AbilityType: models.AbilityEmpathy},
				},
			},
		}, nil)
		narrative := newNarrativeService(mockHistory)

		result, err := narrative.SubmitChoice(ctx, service.ChoiceParams{
			StoryID: "forest", ChildID: 1, SceneNumber: 2, ChoiceText: "용기를 내서 도전해요",
		})

		require.NoError(t, err)
		assert.Equal(t, 10, result.AbilityTotals[models.AbilityEmpathy])
		assert.Equal(t, result.Classification.AbilityPoints, result.AbilityTotals[models.AbilityCourage])

		session, err := narrative.Session(ctx, 1, "forest")
		require.NoError(t, err)
		assert.Equal(t, "숲속의 약속", session.Title)
		require.Len(t, session.Choices, 2)
	})

	t.Run("Concurrent submissions are all recorded", func(t *testing.T) {
		narrative := newNarrativeService(new(mocks.MockHistoryClient))
		startStory(t, narrative)

		const submissions = 10
		done := make(chan error, submissions)
		for i := 0; i < submissions; i++ {
			go func(i int) {
				_, err := narrative.SubmitChoice(ctx, service.ChoiceParams{
					StoryID: "forest", ChildID: 1, SceneNumber: 1,
					ChoiceText: fmt.Sprintf("%d번째로 친구랑 같이 갈래", i),
				})
				done <- err
			}(i)
		}
		for i := 0; i < submissions; i++ {
			require.NoError(t, <-done)
		}

		session, err := narrative.Session(ctx, 1, "forest")
		require.NoError(t, err)
		assert.Len(t, session.Choices, submissions)
		assert.Equal(t, submissions*10, session.Totals()[models.AbilityFriendship])
	})
}
