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
	"dinory-ai/internal/clients"
	"dinory-ai/internal/mocks"
	"dinory-ai/internal/service"
)

func TestRecommendStories(t *testing.T) {
	ctx := context.Background()

	t.Run("Disabled index serves the fixed catalog", func(t *testing.T) {
		recommend := service.NewRecommendationService(ai.NewDisabledClient(), clients.NewDisabledVectorIndex(), zap.NewNop())

		recommendations := recommend.RecommendStories(ctx, "기뻐요", nil, 3)

		require.Len(t, recommendations, 3)
		assert.Equal(t, "새 동생과의 하루", recommendations[0].Title)
		assert.Equal(t, 96, recommendations[0].MatchingScore)
	})

	t.Run("Embedding failure serves the fixed catalog", func(t *testing.T) {
		mockAI := new(mocks.MockAIClient)
		mockAI.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("embedding down"))
		mockIndex := new(mocks.MockVectorIndex)
		mockIndex.On("Enabled").Return(true)
		recommend := service.NewRecommendationService(mockAI, mockIndex, zap.NewNop())

		recommendations := recommend.RecommendStories(ctx, "슬퍼요", nil, 5)

		require.Len(t, recommendations, 5)
		mockIndex.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Index failure serves the fixed catalog", func(t *testing.T) {
		mockAI := new(mocks.MockAIClient)
		mockAI.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		mockIndex := new(mocks.MockVectorIndex)
		mockIndex.On("Enabled").Return(true)
		mockIndex.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("index down"))
		recommend := service.NewRecommendationService(mockAI, mockIndex, zap.NewNop())

		recommendations := recommend.RecommendStories(ctx, "화나요", nil, 2)

		require.Len(t, recommendations, 2)
		assert.Equal(t, "새 동생과의 하루", recommendations[0].Title)
	})

	t.Run("Duplicate titles are removed while keeping the limit filled", func(t *testing.T) {
		matches := make([]clients.VectorMatch, 0, 10)
		titles := []string{"바다 이야기", "바다 이야기", "구름 타기", "구름 타기", "별 헤는 밤", "별 헤는 밤", "달빛 산책", "눈사람 친구", "봄날의 약속", "여름 방학"}
		for i, title := range titles {
			matches = append(matches, clients.VectorMatch{
				ID:       fmt.Sprintf("story_%d", i),
				Score:    0.95 - float64(i)*0.01,
				Metadata: map[string]interface{}{"title": title},
			})
		}

		mockAI := new(mocks.MockAIClient)
		mockAI.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		mockIndex := new(mocks.MockVectorIndex)
		mockIndex.On("Enabled").Return(true)
		mockIndex.On("Query", mock.Anything, mock.Anything, mock.Anything, 10).Return(matches, nil)
		recommend := service.NewRecommendationService(mockAI, mockIndex, zap.NewNop())

		recommendations := recommend.RecommendStories(ctx, "신나요", []string{"바다"}, 5)

		require.Len(t, recommendations, 5)
		seen := make(map[string]bool)
		for _, rec := range recommendations {
			assert.False(t, seen[rec.Title], "duplicate title %q", rec.Title)
			seen[rec.Title] = true
		}
		assert.Equal(t, "바다 이야기", recommendations[0].Title)
	})

	t.Run("Missing titles get a placeholder", func(t *testing.T) {
		mockAI := new(mocks.MockAIClient)
		mockAI.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		mockIndex := new(mocks.MockVectorIndex)
		mockIndex.On("Enabled").Return(true)
		mockIndex.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]clients.VectorMatch{{ID: "story_1", Score: 0.8}}, nil)
		recommend := service.NewRecommendationService(mockAI, mockIndex, zap.NewNop())

		recommendations := recommend.RecommendStories(ctx, "", nil, 5)

		require.Len(t, recommendations, 1)
		assert.Equal(t, "제목 없음", recommendations[0].Title)
		assert.Equal(t, 80, recommendations[0].MatchingScore)
	})

	t.Run("Non-positive limit defaults to five", func(t *testing.T) {
		recommend := service.NewRecommendationService(ai.NewDisabledClient(), clients.NewDisabledVectorIndex(), zap.NewNop())

		recommendations := recommend.RecommendStories(ctx, "", nil, 0)

		assert.Len(t, recommendations, 5)
	})
}

func TestStoryByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Known story is fetched from the index", func(t *testing.T) {
		mockIndex := new(mocks.MockVectorIndex)
		mockIndex.On("Enabled").Return(true)
		mockIndex.On("Fetch", mock.Anything, []string{"story_1"}).Return([]clients.Vector{
			{ID: "story_1", Metadata: map[string]interface{}{"title": "바다 이야기"}},
		}, nil)
		recommend := service.NewRecommendationService(ai.NewDisabledClient(), mockIndex, zap.NewNop())

		story, ok := recommend.StoryByID(ctx, "story_1")

		assert.True(t, ok)
		assert.Equal(t, "바다 이야기", story.Title)
	})

	t.Run("Disabled index misses", func(t *testing.T) {
		recommend := service.NewRecommendationService(ai.NewDisabledClient(), clients.NewDisabledVectorIndex(), zap.NewNop())

		_, ok := recommend.StoryByID(ctx, "story_1")

		assert.False(t, ok)
	})
}
