package responder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/autoreplier/internal/mailbox"
)

func TestLabelResolver_LookupDoesNotCreate(t *testing.T) {
	store := newFakeStore()
	r := newLabelResolver(store, testMailbox, "AutoReplied", 0, time.Now)

	id, err := r.Lookup(context.Background(), mailbox.Credential{})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, store.createCalls)
}

func TestLabelResolver_EnsureConcurrent(t *testing.T) {
	store := newFakeStore()
	r := newLabelResolver(store, testMailbox, "AutoReplied", 0, time.Now)
	_, err := r.Lookup(context.Background(), mailbox.Credential{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], _ = r.Ensure(context.Background(), mailbox.Credential{})
		}()
	}
	wg.Wait()

	assert.Len(t, store.createCalls, 1)
	for _, id := range ids {
		assert.Equal(t, "Label_1", id)
	}
}

func TestLabelResolver_ExactNameMatch(t *testing.T) {
	store := newFakeStore()
	store.labels = []mailbox.Label{{ID: "Label_5", Name: "autoreplied"}}
	r := newLabelResolver(store, testMailbox, "AutoReplied", 0, time.Now)

	id, err := r.Ensure(context.Background(), mailbox.Credential{})
	require.NoError(t, err)
	assert.Equal(t, "Label_1", id)
	assert.Equal(t, []string{"AutoReplied"}, store.createCalls)
}

func TestLabelResolver_ConflictWithoutListing(t *testing.T) {
	store := newFakeStore()
	store.createErr = mailbox.ErrLabelExists
	r := newLabelResolver(store, testMailbox, "AutoReplied", 0, time.Now)

	_, err := r.Ensure(context.Background(), mailbox.Credential{})
	assert.Error(t, err)
}

func TestLabelResolver_CreateFailure(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("quota exceeded")
	r := newLabelResolver(store, testMailbox, "AutoReplied", 0, time.Now)

	_, err := r.Ensure(context.Background(), mailbox.Credential{})
	var providerErr *mailbox.ProviderError
	assert.ErrorAs(t, err, &providerErr)
}

func TestLabelResolver_TTLExpiry(t *testing.T) {
	store := newFakeStore()
	store.labels = []mailbox.Label{{ID: "Label_1", Name: "AutoReplied"}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newLabelResolver(store, testMailbox, "AutoReplied", time.Minute, func() time.Time { return now })

	for range 2 {
		_, err := r.Lookup(context.Background(), mailbox.Credential{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.listLabelCalls)

	now = now.Add(2 * time.Minute)
	_, err := r.Lookup(context.Background(), mailbox.Credential{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.listLabelCalls)

	r.Invalidate()
	_, err = r.Ensure(context.Background(), mailbox.Credential{})
	require.NoError(t, err)
	assert.Equal(t, 3, store.listLabelCalls)
}
