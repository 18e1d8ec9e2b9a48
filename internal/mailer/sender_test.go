package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewResendSender_Validation(t *testing.T) {
	_, err := NewResendSender("", "from@example.com")
	assert.Error(t, err)
	_, err = NewResendSender("re_key", "")
	assert.Error(t, err)
	s, err := NewResendSender("re_key", "Portfolio <no-reply@example.com>")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestLogSender_DoesNotLogBody(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	id, err := s.Send(context.Background(), "alice@example.com", "Your sign-in code", "code 123456", "<b>123456</b>")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Your sign-in code", fields["subject"])
	assert.NotEqual(t, "alice@example.com", fields["to"])
	for _, v := range fields {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "123456")
		}
	}
}

var (
	_ Sender = (*ResendSender)(nil)
	_ Sender = (*LogSender)(nil)
)
