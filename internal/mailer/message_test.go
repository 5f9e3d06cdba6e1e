package mailer

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/autoreplier/internal/mailbox"
)

func TestCompose(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := Compose(mailbox.Message{
		From:    "me@example.com",
		To:      "alice@example.org",
		Subject: "Re: Grüße",
		Body:    "Thank you for your email!",
	}, now)
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Grüße", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "alice@example.org", to[0].Address)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, now.Equal(date))

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "auto-replied", mr.Header.Get("Auto-Submitted"))

	p, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Equal(t, "Thank you for your email!", string(body))
}

func TestCompose_ThreadingHeaders(t *testing.T) {
	msg := testMessage()
	msg.InReplyTo = "orig@mail.example.org"
	msg.References = []string{"root@mail.example.org", "orig@mail.example.org"}

	raw, err := Compose(msg, time.Now())
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	inReplyTo, err := mr.Header.MsgIDList("In-Reply-To")
	require.NoError(t, err)
	assert.Equal(t, []string{"orig@mail.example.org"}, inReplyTo)

	refs, err := mr.Header.MsgIDList("References")
	require.NoError(t, err)
	assert.Equal(t, msg.References, refs)
}

func TestCompose_WithoutThreadingHeaders(t *testing.T) {
	raw, err := Compose(testMessage(), time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "In-Reply-To")
	assert.NotContains(t, string(raw), "References")
}

func TestCompose_InvalidAddress(t *testing.T) {
	_, err := Compose(mailbox.Message{From: "me@example.com", To: "not an address"}, time.Now())
	assert.Error(t, err)

	_, err = Compose(mailbox.Message{From: "", To: "alice@example.org"}, time.Now())
	assert.Error(t, err)
}
