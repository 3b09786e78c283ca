package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifyFailure(t *testing.T) {
	n := NewSMTPNotifier("mail.local", 2525, "noreply@fiapx.local", zap.NewNop())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := n.NotifyFailure(context.Background(), "user@example.com", "job-1", "u1/clip.mp4", "unsupported predicate kind")
	require.NoError(t, err)

	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "noreply@fiapx.local", gotFrom)
	assert.Equal(t, []string{"user@example.com"}, gotTo)
	body := string(gotMsg)
	assert.Contains(t, body, "Subject: FIAP X - Frame Sampling Failed [Job job-1]\r\n")
	assert.Contains(t, body, "Video: u1/clip.mp4")
	assert.Contains(t, body, "Reason: unsupported predicate kind")
}

func TestNotifyFailureSendError(t *testing.T) {
	n := NewSMTPNotifier("mail.local", 2525, "noreply@fiapx.local", zap.NewNop())
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := n.NotifyFailure(context.Background(), "user@example.com", "job-1", "k", "boom")
	assert.ErrorContains(t, err, "connection refused")
}
