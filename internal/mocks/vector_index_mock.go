package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dinory-ai/internal/clients"
)

// MockVectorIndex is a mock type for the clients.VectorIndex type
type MockVectorIndex struct {
	mock.Mock
}

// Upsert provides a mock function with given fields: ctx, vectors
func (_m *MockVectorIndex) Upsert(ctx context.Context, vectors []clients.Vector) error {
	ret := _m.Called(ctx, vectors)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, []clients.Vector) error); ok {
		r0 = rf(ctx, vectors)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Query provides a mock function with given fields: ctx, values, filter, topK
func (_m *MockVectorIndex) Query(ctx context.Context, values []float32, filter map[string]interface{}, topK int) ([]clients.VectorMatch, error) {
	ret := _m.Called(ctx, values, filter, topK)

	var r0 []clients.VectorMatch
	if rf, ok := ret.Get(0).(func(context.Context, []float32, map[string]interface{}, int) []clients.VectorMatch); ok {
		r0 = rf(ctx, values, filter, topK)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]clients.VectorMatch)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, []float32, map[string]interface{}, int) error); ok {
		r1 = rf(ctx, values, filter, topK)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListByPrefix provides a mock function with given fields: ctx, prefix, limit
func (_m *MockVectorIndex) ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	ret := _m.Called(ctx, prefix, limit)

	var r0 []string
	if rf, ok := ret.Get(0).(func(context.Context, string, int) []string); ok {
		r0 = rf(ctx, prefix, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]string)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, int) error); ok {
		r1 = rf(ctx, prefix, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Fetch provides a mock function with given fields: ctx, ids
func (_m *MockVectorIndex) Fetch(ctx context.Context, ids []string) ([]clients.Vector, error) {
	ret := _m.Called(ctx, ids)

	var r0 []clients.Vector
	if rf, ok := ret.Get(0).(func(context.Context, []string) []clients.Vector); ok {
		r0 = rf(ctx, ids)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]clients.Vector)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, []string) error); ok {
		r1 = rf(ctx, ids)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Enabled provides a mock function with no fields
func (_m *MockVectorIndex) Enabled() bool {
	ret := _m.Called()

	var r0 bool
	if rf, ok := ret.Get(0).(func() bool); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

var _ clients.VectorIndex = (*MockVectorIndex)(nil)
