package gmail

import (
	"context"
	"fmt"
	"slices"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/autoreplier/internal/instrumentation"
	"github.com/teemow/autoreplier/internal/logging"
	"github.com/teemow/autoreplier/internal/mailbox"
)

// ListMessages lists up to MaxResults messages matching the query, in the
// order Gmail returns them. A thread whose labels cannot be fetched is left
// out of this listing; the call fails only when no thread could be fetched
// or ctx is done.
func (s *Store) ListMessages(ctx context.Context, cred mailbox.Credential, mb string) ([]mailbox.MessageSummary, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return nil, &mailbox.ProviderError{Op: "list messages", Err: err}
	}

	refs, err := s.listMessageRefs(ctx, svc, mb)
	if err != nil {
		return nil, &mailbox.ProviderError{Op: "list messages", Err: err}
	}

	threadLabels := make(map[string]threadLabelSet)
	failed := make(map[string]struct{})
	var firstErr error
	summaries := make([]mailbox.MessageSummary, 0, len(refs))

	for _, ref := range refs {
		if _, ok := failed[ref.ThreadId]; ok {
			continue
		}
		set, ok := threadLabels[ref.ThreadId]
		if !ok {
			set, err = s.fetchThreadLabels(ctx, svc, mb, ref.ThreadId)
			if err != nil {
				err = &mailbox.ProviderError{Op: "get thread", MessageID: ref.Id, ThreadID: ref.ThreadId, Err: err}
				if ctx.Err() != nil {
					return nil, err
				}
				s.logger.Warn("skipping thread whose labels could not be fetched",
					logging.ThreadID(ref.ThreadId), logging.Err(err))
				failed[ref.ThreadId] = struct{}{}
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			threadLabels[ref.ThreadId] = set
		}

		summaries = append(summaries, mailbox.MessageSummary{
			ID:       ref.Id,
			ThreadID: ref.ThreadId,
			LabelIDs: set.labelsFor(ref.Id),
		})
	}

	if len(threadLabels) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return summaries, nil
}

func (s *Store) listMessageRefs(ctx context.Context, svc *gmail.Service, mb string) ([]*gmail.Message, error) {
	var refs []*gmail.Message
	pageToken := ""
	q := s.query()

	for {
		remaining := s.cfg.MaxResults - int64(len(refs))
		if remaining <= 0 {
			break
		}
		pageSize := min(remaining, maxPageSize)

		var res *gmail.ListMessagesResponse
		err := s.call(ctx, instrumentation.OperationListMessages, func(ctx context.Context) error {
			req := svc.Users.Messages.List(userID(mb)).Q(q).MaxResults(pageSize).Context(ctx)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			var err error
			res, err = req.Do()
			return err
		})
		if err != nil {
			return nil, err
		}

		refs = append(refs, res.Messages...)

		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(refs)) > s.cfg.MaxResults {
		refs = refs[:s.cfg.MaxResults]
	}
	return refs, nil
}

// threadLabelSet holds per-message labels of one thread and the user
// labels present anywhere in it.
type threadLabelSet struct {
	byMessage map[string][]string
	shared    []string
}

func (t threadLabelSet) labelsFor(messageID string) []string {
	own := t.byMessage[messageID]
	out := slices.Clone(own)
	for _, l := range t.shared {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func (s *Store) fetchThreadLabels(ctx context.Context, svc *gmail.Service, mb, threadID string) (threadLabelSet, error) {
	var thread *gmail.Thread
	err := s.call(ctx, instrumentation.OperationGetThread, func(ctx context.Context) error {
		var err error
		thread, err = svc.Users.Threads.Get(userID(mb), threadID).Format("minimal").Context(ctx).Do()
		return err
	})
	if err != nil {
		return threadLabelSet{}, err
	}

	set := threadLabelSet{byMessage: make(map[string][]string, len(thread.Messages))}
	for _, m := range thread.Messages {
		set.byMessage[m.Id] = m.LabelIds
		for _, l := range m.LabelIds {
			if isUserLabel(l) && !slices.Contains(set.shared, l) {
				set.shared = append(set.shared, l)
			}
		}
	}
	return set, nil
}

// isUserLabel reports whether id names a user-created label. System label
// IDs such as SENT or INBOX are upper-case words.
func isUserLabel(id string) bool {
	return strings.HasPrefix(id, "Label_")
}

// GetMessage fetches the sender, subject and threading headers of one
// message.
func (s *Store) GetMessage(ctx context.Context, cred mailbox.Credential, mb, id string) (mailbox.MessageDetail, error) {
	svc, err := s.service(ctx, cred)
	if err != nil {
		return mailbox.MessageDetail{}, &mailbox.ProviderError{Op: "get message", MessageID: id, Err: err}
	}

	var msg *gmail.Message
	err = s.call(ctx, instrumentation.OperationGetMessage, func(ctx context.Context) error {
		var err error
		msg, err = svc.Users.Messages.Get(userID(mb), id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Message-ID", "References").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return mailbox.MessageDetail{}, &mailbox.ProviderError{Op: "get message", MessageID: id, Err: err}
	}

	var h mail.Header
	if msg.Payload != nil {
		for _, hdr := range msg.Payload.Headers {
			h.Add(hdr.Name, hdr.Value)
		}
	}

	sender, err := parseSender(h)
	if err != nil {
		return mailbox.MessageDetail{}, &mailbox.MalformedSenderError{MessageID: id, Header: h.Get("From"), Err: err}
	}

	subject, err := h.Subject()
	if err != nil {
		// Undecodable encoded words; keep the raw value.
		subject = h.Get("Subject")
	}

	detail := mailbox.MessageDetail{SenderAddress: sender, Subject: subject}
	// Threading headers are best effort; a reply without them is still sent.
	if id, err := h.MessageID(); err == nil {
		detail.MessageID = id
	}
	if refs, err := h.MsgIDList("References"); err == nil {
		detail.References = refs
	}
	return detail, nil
}

// parseSender returns the first address of the From header. It accepts
// both "Name <address>" and a bare address.
func parseSender(h mail.Header) (string, error) {
	if strings.TrimSpace(h.Get("From")) == "" {
		return "", mailbox.ErrNoSender
	}
	addrs, err := h.AddressList("From")
	if err != nil {
		return "", fmt.Errorf("parse From header: %w", err)
	}
	if len(addrs) == 0 || addrs[0].Address == "" {
		return "", mailbox.ErrNoSender
	}
	return addrs[0].Address, nil
}
