package gmail

import (
	"context"
	"fmt"
	"net/http"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/autoreplier/internal/instrumentation"
	"github.com/teemow/autoreplier/internal/mailbox"
)

// ListLabels returns every label in the mailbox.
func (s *Store) ListLabels(ctx context.Context, cred mailbox.Credential, mb string) ([]mailbox.Label, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return nil, &mailbox.ProviderError{Op: "list labels", Err: err}
	}

	var res *gmail.ListLabelsResponse
	err = s.call(ctx, instrumentation.OperationListLabels, func(ctx context.Context) error {
		var err error
		res, err = svc.Users.Labels.List(userID(mb)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, &mailbox.ProviderError{Op: "list labels", Err: err}
	}

	labels := make([]mailbox.Label, 0, len(res.Labels))
	for _, l := range res.Labels {
		labels = append(labels, mailbox.Label{ID: l.Id, Name: l.Name})
	}
	return labels, nil
}

// CreateLabel creates a label visible in both the label and message lists.
// A name conflict is reported wrapping mailbox.ErrLabelExists.
func (s *Store) CreateLabel(ctx context.Context, cred mailbox.Credential, mb, name string) (string, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return "", &mailbox.ProviderError{Op: "create label", Err: err}
	}

	var created *gmail.Label
	err = s.call(ctx, instrumentation.OperationCreateLabel, func(ctx context.Context) error {
		var err error
		created, err = svc.Users.Labels.Create(userID(mb), &gmail.Label{
			Name:                  name,
			MessageListVisibility: "show",
			LabelListVisibility:   "labelShow",
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		if statusCode(err) == http.StatusConflict {
			err = fmt.Errorf("%w: %w", mailbox.ErrLabelExists, err)
		}
		return "", &mailbox.ProviderError{Op: "create label", Err: err}
	}

	return created.Id, nil
}

// AddLabelToThread applies labelID to every message in the thread.
func (s *Store) AddLabelToThread(ctx context.Context, cred mailbox.Credential, mb, threadID, labelID string) error {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return &mailbox.ProviderError{Op: "modify thread", ThreadID: threadID, Err: err}
	}

	err = s.call(ctx, instrumentation.OperationModifyThread, func(ctx context.Context) error {
		_, err := svc.Users.Threads.Modify(userID(mb), threadID, &gmail.ModifyThreadRequest{
			AddLabelIds: []string{labelID},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return &mailbox.ProviderError{Op: "modify thread", ThreadID: threadID, Err: err}
	}
	return nil
}
