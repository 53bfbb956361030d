// Package mocks provides testify mocks for the repository interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pandeypooja21/code-sync/internal/domain"
)

// WorkspaceRepository is a mock implementation of repository.WorkspaceRepository.
type WorkspaceRepository struct {
	mock.Mock
}

func (m *WorkspaceRepository) FindByID(ctx context.Context, id string) (*domain.WorkspaceRecord, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*domain.WorkspaceRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkspaceRepository) Save(ctx context.Context, record *domain.WorkspaceRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
