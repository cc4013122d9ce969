package engine

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_core/internal/infra"
)

type mailbox struct {
	mu   sync.Mutex
	msgs []string
	to   []string
}

func (b *mailbox) send(from string, to []string, msg []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.to = append(b.to, to...)
	b.msgs = append(b.msgs, string(msg))
	return nil
}

func enabledEmail() infra.EmailConfig {
	return infra.EmailConfig{
		Enabled:  true,
		Server:   "smtp.example.com",
		Port:     465,
		Sender:   "bot@example.com",
		Receiver: "desk@example.com",
	}
}

func TestEmailEngine_DeliversQueuedMail(t *testing.T) {
	box := &mailbox{}
	e := NewEmailEngine(enabledEmail(), box.send, discard())

	e.SendEmail("Order filled", "1.PAPER ALLTRADED", "")
	e.SendEmail("Risk", "limit", "risk@example.com")
	require.NoError(t, e.Close())

	box.mu.Lock()
	defer box.mu.Unlock()
	require.Len(t, box.msgs, 2)
	assert.Equal(t, []string{"desk@example.com", "risk@example.com"}, box.to)
	assert.Contains(t, box.msgs[0], "Subject: Order filled\r\n")
	assert.True(t, strings.HasSuffix(box.msgs[0], "\r\n\r\n1.PAPER ALLTRADED"))
}

func TestEmailEngine_DisabledAndClosed(t *testing.T) {
	box := &mailbox{}
	cfg := enabledEmail()
	cfg.Enabled = false

	e := NewEmailEngine(cfg, box.send, discard())
	e.SendEmail("ignored", "", "")
	require.NoError(t, e.Close())

	on := NewEmailEngine(enabledEmail(), box.send, discard())
	require.NoError(t, on.Close())
	on.SendEmail("after close", "", "")
	require.NoError(t, on.Close())

	box.mu.Lock()
	defer box.mu.Unlock()
	assert.Empty(t, box.msgs)
}

func TestFormatMailEncodesSubject(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := string(formatMail("a@example.com", Mail{Subject: "成交通知", Content: "body", Receiver: "b@example.com"}, now))

	assert.Contains(t, msg, "From: a@example.com\r\n")
	assert.Contains(t, msg, "To: b@example.com\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "Date: Fri, 01 Mar 2024 09:30:00 +0000\r\n")
}
