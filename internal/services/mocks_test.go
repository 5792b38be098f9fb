package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Notify(ctx context.Context, participantID, title, body string) {
	m.Called(ctx, participantID, title, body)
}
