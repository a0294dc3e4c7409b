package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{dialer: d, from: "clinic@example.com"}

	err := s.Send(context.Background(), Message{To: "pat@example.com", Subject: "Booked", Body: "See you"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"clinic@example.com"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"pat@example.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Booked"}, d.sent[0].GetHeader("Subject"))
}

func TestSMTPSenderWrapsError(t *testing.T) {
	boom := errors.New("connection refused")
	s := &SMTPSender{dialer: &fakeDialer{err: boom}, from: "a@b.c"}

	err := s.Send(context.Background(), Message{To: "x@y.z"})
	assert.ErrorIs(t, err, boom)
}

func TestNewSender(t *testing.T) {
	assert.IsType(t, LogSender{}, NewSender(config.SMTPConfig{}))
	assert.IsType(t, &SMTPSender{}, NewSender(config.SMTPConfig{Enabled: true, Host: "smtp", Port: 25}))
	assert.NoError(t, LogSender{}.Send(context.Background(), Message{To: "a@b.c"}))
}
