package mailbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestMessageSummary_HasLabel(t *testing.T) {
	s := MessageSummary{ID: "m1", ThreadID: "t1", LabelIDs: []string{"INBOX", "Label_7"}}

	assert.True(t, s.HasLabel("Label_7"))
	assert.True(t, s.HasLabel(LabelSent, "INBOX"))
	assert.False(t, s.HasLabel(LabelSent, DefaultHandledLabel))
	assert.False(t, s.HasLabel(""), "empty label must never match")
	assert.False(t, MessageSummary{}.HasLabel(LabelSent))
}

func TestFindLabel(t *testing.T) {
	labels := []Label{{ID: "Label_1", Name: "autoreplied"}, {ID: "Label_2", Name: "AutoReplied"}}

	got, ok := FindLabel(labels, "AutoReplied")
	assert.True(t, ok)
	assert.Equal(t, "Label_2", got.ID)

	_, ok = FindLabel(labels, "Missing")
	assert.False(t, ok)
}

func TestCredential_Valid(t *testing.T) {
	valid := NewCredential(&oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)})
	assert.True(t, valid.Valid())
	assert.Equal(t, "a", valid.Token().AccessToken)

	expired := NewCredential(&oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Hour)})
	assert.False(t, expired.Valid())

	assert.False(t, Credential{}.Valid())
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	var pe *ProviderError
	err := error(&ProviderError{Op: "get", MessageID: "m1", ThreadID: "t1", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, "provider get message=m1 thread=t1: boom", err.Error())

	assert.ErrorIs(t, &AuthError{Mailbox: "me@example.com", Err: cause}, cause)
	assert.ErrorIs(t, &MailerError{Recipient: "jane@example.com", Err: cause}, cause)
	assert.ErrorIs(t, &MalformedSenderError{MessageID: "m1", Err: ErrNoSender}, ErrNoSender)
}

func TestMessageDetail_ReplyReferences(t *testing.T) {
	assert.Nil(t, MessageDetail{}.ReplyReferences())
	assert.Equal(t, []string{"a@x"}, MessageDetail{MessageID: "a@x"}.ReplyReferences())

	d := MessageDetail{MessageID: "c@x", References: []string{"a@x", "b@x"}}
	refs := d.ReplyReferences()
	assert.Equal(t, []string{"a@x", "b@x", "c@x"}, refs)

	refs[0] = "changed"
	assert.Equal(t, "a@x", d.References[0])
}
