package smtp

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSendEmail_BuildsMessage(t *testing.T) {
	d := &recordingDialer{}
	m := &mailer{dialer: d, from: "noreply@example.com"}

	require.NoError(t, m.SendEmail(context.Background(), "a@x.com", "Your code", "<b>123456</b>"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"noreply@example.com"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"a@x.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your code"}, d.sent[0].GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "123456")
}

func TestSendEmail_PropagatesDialError(t *testing.T) {
	d := &recordingDialer{err: errors.New("connection refused")}
	m := &mailer{dialer: d, from: "noreply@example.com"}
	assert.EqualError(t, m.SendEmail(context.Background(), "a@x.com", "s", "b"), "connection refused")
}

func TestSendEmail_CancelledContext(t *testing.T) {
	d := &recordingDialer{}
	m := &mailer{dialer: d, from: "noreply@example.com"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.SendEmail(ctx, "a@x.com", "s", "b"), context.Canceled)
	assert.Empty(t, d.sent)
}
