package responder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/autoreplier/internal/mailbox"
)

const testMailbox = "me@example.com"

type fakeAuth struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (a *fakeAuth) Credential(context.Context) (mailbox.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return mailbox.Credential{}, &mailbox.AuthError{Mailbox: testMailbox, Err: a.err}
	}
	return mailbox.NewCredential(&oauth2.Token{AccessToken: "access"}), nil
}

type fakeStore struct {
	mu sync.Mutex

	summaries []mailbox.MessageSummary
	details   map[string]mailbox.MessageDetail
	labels    []mailbox.Label

	listErr        error
	listLabelsErr  error
	getErr         map[string]error
	createErr      error
	onCreate       func(s *fakeStore)
	addLabelErrs   []error
	nextLabelID    int
	listLabelCalls int
	createCalls    []string
	addLabelCalls  [][2]string
	getCalls       []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{details: map[string]mailbox.MessageDetail{}, getErr: map[string]error{}}
}

func (s *fakeStore) addMessage(id, threadID, sender, subject string, labels ...string) {
	s.summaries = append(s.summaries, mailbox.MessageSummary{ID: id, ThreadID: threadID, LabelIDs: labels})
	s.details[id] = mailbox.MessageDetail{SenderAddress: sender, Subject: subject}
}

func (s *fakeStore) ListMessages(context.Context, mailbox.Credential, string) ([]mailbox.MessageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, &mailbox.ProviderError{Op: "list messages", Err: s.listErr}
	}
	out := make([]mailbox.MessageSummary, len(s.summaries))
	for i, sum := range s.summaries {
		sum.LabelIDs = slices.Clone(sum.LabelIDs)
		out[i] = sum
	}
	return out, nil
}

func (s *fakeStore) GetMessage(_ context.Context, _ mailbox.Credential, _ string, id string) (mailbox.MessageDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls = append(s.getCalls, id)
	if err := s.getErr[id]; err != nil {
		var malformed *mailbox.MalformedSenderError
		if errors.As(err, &malformed) {
			return mailbox.MessageDetail{}, err
		}
		return mailbox.MessageDetail{}, &mailbox.ProviderError{Op: "get message", MessageID: id, Err: err}
	}
	return s.details[id], nil
}

func (s *fakeStore) ListLabels(context.Context, mailbox.Credential, string) ([]mailbox.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listLabelCalls++
	if s.listLabelsErr != nil {
		return nil, &mailbox.ProviderError{Op: "list labels", Err: s.listLabelsErr}
	}
	return slices.Clone(s.labels), nil
}

func (s *fakeStore) CreateLabel(_ context.Context, _ mailbox.Credential, _ string, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls = append(s.createCalls, name)
	if s.onCreate != nil {
		s.onCreate(s)
	}
	if s.createErr != nil {
		return "", &mailbox.ProviderError{Op: "create label", Err: s.createErr}
	}
	s.nextLabelID++
	id := fmt.Sprintf("Label_%d", s.nextLabelID)
	s.labels = append(s.labels, mailbox.Label{ID: id, Name: name})
	return id, nil
}

func (s *fakeStore) AddLabelToThread(_ context.Context, _ mailbox.Credential, _ string, threadID, labelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLabelCalls = append(s.addLabelCalls, [2]string{threadID, labelID})
	if len(s.addLabelErrs) > 0 {
		err := s.addLabelErrs[0]
		s.addLabelErrs = s.addLabelErrs[1:]
		if err != nil {
			return &mailbox.ProviderError{Op: "modify thread", ThreadID: threadID, Err: err}
		}
	}
	for i := range s.summaries {
		if s.summaries[i].ThreadID == threadID {
			s.summaries[i].LabelIDs = append(s.summaries[i].LabelIDs, labelID)
		}
	}
	return nil
}

func (s *fakeStore) labeledThreads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.addLabelCalls))
	for _, c := range s.addLabelCalls {
		out = append(out, c[0])
	}
	slices.Sort(out)
	return out
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailbox.Message
	fail map[string]error
}

func (m *fakeMailer) Send(_ context.Context, msg mailbox.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[msg.To]; err != nil {
		return &mailbox.MailerError{Recipient: msg.To, Err: err}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.To)
	}
	slices.Sort(out)
	return out
}
