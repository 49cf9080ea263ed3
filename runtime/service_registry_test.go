package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type mockService struct {
	status error
}

func (m *mockService) Start() {}

func (m *mockService) Stop() error { return nil }

func (m *mockService) Status() error { return m.status }

type secondMockService struct {
	status error
}

func (s *secondMockService) Start() {}

func (s *secondMockService) Stop() error { return nil }

func (s *secondMockService) Status() error { return s.status }

func TestRegisterService_Twice(t *testing.T) {
	registry := NewServiceRegistry()
	m := &mockService{}
	require.NoError(t, registry.RegisterService(m))
	require.Error(t, registry.RegisterService(m), "registering the same type twice must fail")
}

func TestRegisterService_Different(t *testing.T) {
	registry := NewServiceRegistry()
	require.NoError(t, registry.RegisterService(&mockService{}))
	require.NoError(t, registry.RegisterService(&secondMockService{}))
	require.Len(t, registry.Statuses(), 2)
}

func TestFetchService(t *testing.T) {
	registry := NewServiceRegistry()
	m := &mockService{}
	require.NoError(t, registry.RegisterService(m))

	require.Error(t, registry.FetchService(*m), "value argument must be rejected")

	var missing *secondMockService
	require.Error(t, registry.FetchService(&missing))

	var fetched *mockService
	require.NoError(t, registry.FetchService(&fetched))
	require.Same(t, m, fetched)
}
