package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockAccountForTest creates a new mock Account for testing
func NewMockAccountForTest(t *testing.T) *MockAccount {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockAccount(ctrl)
}

// NewMockCallExecutorForTest creates a new mock CallExecutor for testing
func NewMockCallExecutorForTest(t *testing.T) *MockCallExecutor {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockCallExecutor(ctrl)
}
