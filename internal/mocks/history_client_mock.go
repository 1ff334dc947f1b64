package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dinory-ai/internal/clients"
	"dinory-ai/internal/models"
)

// MockHistoryClient is a mock type for the clients.HistoryClient type
type MockHistoryClient struct {
	mock.Mock
}

// GetChatHistory provides a mock function with given fields: ctx, childID, limit
func (_m *MockHistoryClient) GetChatHistory(ctx context.Context, childID int64, limit int) ([]models.ConversationTurn, error) {
	ret := _m.Called(ctx, childID, limit)

	var r0 []models.ConversationTurn
	if rf, ok := ret.Get(0).(func(context.Context, int64, int) []models.ConversationTurn); ok {
		r0 = rf(ctx, childID, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]models.ConversationTurn)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int64, int) error); ok {
		r1 = rf(ctx, childID, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetStoryCompletions provides a mock function with given fields: ctx, childID, limit
func (_m *MockHistoryClient) GetStoryCompletions(ctx context.Context, childID int64, limit int) ([]models.StoryCompletion, error) {
	ret := _m.Called(ctx, childID, limit)

	var r0 []models.StoryCompletion
	if rf, ok := ret.Get(0).(func(context.Context, int64, int) []models.StoryCompletion); ok {
		r0 = rf(ctx, childID, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]models.StoryCompletion)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int64, int) error); ok {
		r1 = rf(ctx, childID, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

var _ clients.HistoryClient = (*MockHistoryClient)(nil)
