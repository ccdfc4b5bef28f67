// Package executormock contains mocks for the executor package.
package executormock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sandrun/sandrun/internal/executor"
	"github.com/sandrun/sandrun/internal/model"
)

// Executor is a mock of the executor.Executor interface.
type Executor struct {
	mock.Mock
}

func (m *Executor) Execute(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	args := m.Called(ctx, req)

	res, _ := args.Get(0).(*model.ExecutionResult)
	return res, args.Error(1)
}

func (m *Executor) Validate(req model.ExecutionRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *Executor) CheckAvailability(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ executor.Executor = (*Executor)(nil)
