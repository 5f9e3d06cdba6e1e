package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, log func(*slog.Logger)) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	log(slog.New(slog.NewJSONHandler(&buf, nil)))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerHelpers(t *testing.T) {
	entry := captureJSON(t, func(l *slog.Logger) {
		l = WithService(l, "smtp")
		l = WithMailbox(l, "Me@Example.com")
		l = WithMessage(l, "msg-1", "thread-1")
		l.Info("replied", SenderHash("friend@example.org"), Reason("handled"), Status("success"))
	})

	assert.Equal(t, "smtp", entry[KeyService])
	assert.Equal(t, AnonymizeEmail("me@example.com"), entry[KeyMailbox])
	assert.Equal(t, "msg-1", entry[KeyMessageID])
	assert.Equal(t, "thread-1", entry[KeyThreadID])
	assert.Equal(t, AnonymizeEmail("friend@example.org"), entry[KeySenderHash])
	assert.Equal(t, "handled", entry[KeyReason])
	assert.Equal(t, "success", entry[KeyStatus])
}

func TestErr(t *testing.T) {
	withErr := captureJSON(t, func(l *slog.Logger) {
		l.Error("failed", Err(errors.New("boom")))
	})
	assert.Equal(t, "boom", withErr[KeyError])

	withoutErr := captureJSON(t, func(l *slog.Logger) {
		l.Info("fine", Err(nil))
	})
	assert.NotContains(t, withoutErr, KeyError)
}

func TestAnonymizeEmail(t *testing.T) {
	assert.Empty(t, AnonymizeEmail(""))

	hashed := AnonymizeEmail("jane@example.com")
	assert.Regexp(t, `^user:[0-9a-f]{16}$`, hashed)
	assert.Equal(t, hashed, AnonymizeEmail("JANE@example.COM"))
	assert.NotEqual(t, hashed, AnonymizeEmail("john@example.com"))
	assert.NotContains(t, hashed, "jane")
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	assert.Equal(t, "[token:14 chars]", SanitizeToken("ya29.secretabc"))
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{address: "jane@example.com", want: "example.com"},
		{address: "Jane@Mail.Example.COM", want: "mail.example.com"},
		{address: `"a@b"@example.org`, want: "example.org"},
		{address: "no-at-sign", want: ""},
		{address: "@example.com", want: ""},
		{address: "jane@", want: ""},
		{address: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.address))
		})
	}
}
