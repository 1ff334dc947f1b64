package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dinory-ai/internal/ai"
)

// MockAIClient is a mock type for the ai.Client type
type MockAIClient struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, messages, params
func (_m *MockAIClient) Generate(ctx context.Context, messages []ai.Message, params ai.GenerationParams) (string, error) {
	ret := _m.Called(ctx, messages, params)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, []ai.Message, ai.GenerationParams) string); ok {
		r0 = rf(ctx, messages, params)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, []ai.Message, ai.GenerationParams) error); ok {
		r1 = rf(ctx, messages, params)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Embed provides a mock function with given fields: ctx, text
func (_m *MockAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ret := _m.Called(ctx, text)

	var r0 []float32
	if rf, ok := ret.Get(0).(func(context.Context, string) []float32); ok {
		r0 = rf(ctx, text)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]float32)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, text)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Enabled provides a mock function with no fields
func (_m *MockAIClient) Enabled() bool {
	ret := _m.Called()

	var r0 bool
	if rf, ok := ret.Get(0).(func() bool); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

var _ ai.Client = (*MockAIClient)(nil)
