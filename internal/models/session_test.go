package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dinory-ai/internal/models"
)

func TestAbilityLedger(t *testing.T) {
	t.Run("Totals accumulate per ability", func(t *testing.T) {
		session := models.NewStorySession("1:forest", "forest", 1, "지우")

		require.NoError(t, session.AddAbility(models.AbilityCourage, 12))
		require.NoError(t, session.AddAbility(models.AbilityCourage, 10))
		require.NoError(t, session.AddAbility(models.AbilityEmpathy, 8))

		totals := session.Totals()
		assert.Equal(t, 22, totals[models.AbilityCourage])
		assert.Equal(t, 8, totals[models.AbilityEmpathy])
	})

	t.Run("Totals always report all five abilities", func(t *testing.T) {
		session := models.NewStorySession("1:forest", "forest", 1, "지우")

		totals := session.Totals()

		require.Len(t, totals, len(models.AllAbilities))
		for _, ability := range models.AllAbilities {
			assert.Equal(t, 0, totals[ability])
		}
	})

	t.Run("Negative points are rejected", func(t *testing.T) {
		session := models.NewStorySession("1:forest", "forest", 1, "지우")

		err := session.AddAbility(models.AbilityCourage, -3)

		assert.ErrorIs(t, err, models.ErrValidation)
		assert.Equal(t, 0, session.Totals()[models.AbilityCourage])
	})

	t.Run("Unknown abilities are rejected", func(t *testing.T) {
		session := models.NewStorySession("1:forest", "forest", 1, "지우")

		err := session.AddAbility(models.AbilityType("지혜"), 10)

		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestCommitScene(t *testing.T) {
	t.Run("Commit advances the scene counter", func(t *testing.T) {
		session := models.NewStorySession("1:forest", "forest", 1, "지우")

		session.CommitScene(models.Scene{SceneNumber: 1, Content: "시작"})
		session.CommitScene(models.Scene{SceneNumber: 2, Content: "전개"})

		assert.Equal(t, 2, session.CurrentSceneNumber)
		assert.False(t, session.Terminal)

		scene, ok := session.SceneByNumber(1)
		assert.True(t, ok)
		assert.Equal(t, "시작", scene.Content)
		_, ok = session.SceneByNumber(3)
		assert.False(t, ok)
	})

	t.Run("Final scene makes the session terminal", func(t *testing.T) {
		session := models.NewStorySession("1:forest", "forest", 1, "지우")

		session.CommitScene(models.Scene{SceneNumber: models.MaxScenes, Content: "끝", IsEnding: true})

		assert.True(t, session.Terminal)
	})
}

func TestClone(t *testing.T) {
	session := models.NewStorySession("1:forest", "forest", 1, "지우")
	require.NoError(t, session.AddAbility(models.AbilityCourage, 12))
	session.CommitScene(models.Scene{
		SceneNumber: 1,
		Content:     "시작",
		Choices:     []models.Choice{{ChoiceID: 11, ChoiceText: "출발", AbilityType: models.AbilityCourage, AbilityPoints: 10}},
	})
	session.Choices = []models.ChoiceRecord{{SceneNumber: 1, ChoiceText: "출발", AbilityType: models.AbilityCourage}}

	clone := session.Clone()
	require.NoError(t, clone.AddAbility(models.AbilityCourage, 100))
	clone.SceneHistory[0].Choices[0].ChoiceText = "변경"
	clone.Choices[0].ChoiceText = "변경"

	assert.Equal(t, 12, session.Totals()[models.AbilityCourage])
	assert.Equal(t, "출발", session.SceneHistory[0].Choices[0].ChoiceText)
	assert.Equal(t, "출발", session.Choices[0].ChoiceText)

	var nilSession *models.StorySession
	assert.Nil(t, nilSession.Clone())
}

func TestUnusedAbilities(t *testing.T) {
	t.Run("All abilities are unused at the start", func(t *testing.T) {
		unused := models.UnusedAbilities(nil)

		assert.Equal(t, models.AllAbilities, unused)
	})

	t.Run("Recorded abilities drop out in canonical order", func(t *testing.T) {
		unused := models.UnusedAbilities([]models.ChoiceRecord{
			{SceneNumber: 1, AbilityType: models.AbilityEmpathy},
			{SceneNumber: 2, AbilityType: models.AbilityFriendship},
		})

		assert.Equal(t, []models.AbilityType{
			models.AbilityCourage,
			models.AbilityCreativity,
			models.AbilityResponsibility,
		}, unused)
	})
}

func TestAbilityNames(t *testing.T) {
	t.Run("Wire values map to backend keys and back", func(t *testing.T) {
		assert.Equal(t, "courage", models.AbilityCourage.EnglishName())
		assert.Equal(t, "friendship", models.AbilityFriendship.EnglishName())

		ability, ok := models.AbilityFromEnglish("empathy")
		assert.True(t, ok)
		assert.Equal(t, models.AbilityEmpathy, ability)

		_, ok = models.AbilityFromEnglish("wisdom")
		assert.False(t, ok)
	})

	t.Run("Only taxonomy values are valid", func(t *testing.T) {
		for _, ability := range models.AllAbilities {
			assert.True(t, ability.IsValid())
		}
		assert.False(t, models.AbilityType("지혜").IsValid())
		assert.False(t, models.AbilityType("").IsValid())
	})
}
