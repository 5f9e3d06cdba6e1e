package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teemow/autoreplier/internal/mailbox"
)

// labelResolver maps the handled label name to its ID. All calls are
// serialized so concurrent workers create the label at most once.
type labelResolver struct {
	store   MailStore
	mailbox string
	name    string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	id      string
	fetched time.Time
	// pinned keeps the ID for the rest of the current cycle.
	pinned bool
}

func newLabelResolver(store MailStore, mb, name string, ttl time.Duration, now func() time.Time) *labelResolver {
	return &labelResolver{store: store, mailbox: mb, name: name, ttl: ttl, now: now}
}

// Lookup starts a new cycle and returns the label's ID without creating it.
// An empty ID with a nil error means the label does not exist yet.
func (r *labelResolver) Lookup(ctx context.Context, cred mailbox.Credential) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pinned = false
	if r.cachedLocked() {
		r.pinned = true
		return r.id, nil
	}

	label, found, err := r.findLocked(ctx, cred)
	if err != nil {
		return "", err
	}
	if !found {
		r.id = ""
		return "", nil
	}
	r.storeLocked(label.ID)
	return r.id, nil
}

// Ensure returns the label's ID, creating the label if it is missing.
func (r *labelResolver) Ensure(ctx context.Context, cred mailbox.Credential) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if (r.pinned && r.id != "") || r.cachedLocked() {
		return r.id, nil
	}

	label, found, err := r.findLocked(ctx, cred)
	if err != nil {
		return "", err
	}
	if found {
		r.storeLocked(label.ID)
		return r.id, nil
	}

	id, err := r.store.CreateLabel(ctx, cred, r.mailbox, r.name)
	if errors.Is(err, mailbox.ErrLabelExists) {
		// Created elsewhere between our list and create.
		label, found, err = r.findLocked(ctx, cred)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("label %q reported as existing but not listed", r.name)
		}
		id = label.ID
	} else if err != nil {
		return "", err
	}

	r.storeLocked(id)
	return r.id, nil
}

// Invalidate forgets the cached ID, e.g. after the provider rejected it.
func (r *labelResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = ""
	r.pinned = false
	r.fetched = time.Time{}
}

func (r *labelResolver) cachedLocked() bool {
	return r.id != "" && r.ttl > 0 && r.now().Sub(r.fetched) < r.ttl
}

func (r *labelResolver) storeLocked(id string) {
	r.id = id
	r.fetched = r.now()
	r.pinned = true
}

func (r *labelResolver) findLocked(ctx context.Context, cred mailbox.Credential) (mailbox.Label, bool, error) {
	labels, err := r.store.ListLabels(ctx, cred, r.mailbox)
	if err != nil {
		return mailbox.Label{}, false, err
	}
	label, found := mailbox.FindLabel(labels, r.name)
	return label, found, nil
}
