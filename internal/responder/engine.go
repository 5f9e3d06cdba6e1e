package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/autoreplier/internal/instrumentation"
	"github.com/teemow/autoreplier/internal/logging"
	"github.com/teemow/autoreplier/internal/mailbox"
)

// ReplySubject returns the subject line of a reply to subject.
func ReplySubject(subject string) string {
	return "Re: " + subject
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	Started  time.Time
	Duration time.Duration

	// Listed is the number of summaries the listing returned.
	Listed int
	// Replied counts sent replies, or would-be replies in dry-run mode.
	Replied int
	// Unlabeled counts replies whose thread could not be labeled.
	Unlabeled int
	// Skipped counts summaries passed over without a provider error.
	Skipped int
	// Failed counts messages that hit a fetch or send error.
	Failed int

	// Err is set when the cycle stopped before processing messages.
	Err error
}

// OK reports whether the cycle got as far as processing messages.
func (r CycleReport) OK() bool {
	return r.Err == nil
}

type tally struct {
	replied, unlabeled, skipped, failed atomic.Int64
}

// Engine runs the reply cycle. Create it with New.
type Engine struct {
	auth   Authenticator
	store  MailStore
	mailer Mailer
	opts   Options

	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	audit     *instrumentation.AuditLogger
	observers []func(CycleReport)
	delay     func() time.Duration
	now       func() time.Time

	labels    *labelResolver
	malformed *malformedTracker
}

// New validates opts, fills in defaults and returns an Engine.
func New(auth Authenticator, store MailStore, mailer Mailer, opts Options, options ...Option) (*Engine, error) {
	if auth == nil || store == nil || mailer == nil {
		return nil, errors.New("authenticator, mail store and mailer are required")
	}

	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine options: %w", err)
	}

	e := &Engine{
		auth:   auth,
		store:  store,
		mailer: mailer,
		opts:   opts,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.delay == nil {
		e.delay = func() time.Duration { return NextDelay(e.opts.MinInterval, e.opts.MaxInterval) }
	}

	e.logger = logging.WithMailbox(e.logger.With(slog.String("component", "responder")), opts.Mailbox)
	e.labels = newLabelResolver(store, opts.Mailbox, opts.HandledLabel, opts.LabelCacheTTL, e.now)
	e.malformed = newMalformedTracker(opts.MalformedSenderMaxAttempts)

	return e, nil
}

// Options returns the effective options after defaults.
func (e *Engine) Options() Options {
	return e.opts
}

// Run executes cycles until ctx is cancelled, pausing a random delay
// between them. It returns nil once ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("auto-reply engine started",
		slog.String("label", e.opts.HandledLabel),
		slog.Duration("min_interval", e.opts.MinInterval),
		slog.Duration("max_interval", e.opts.MaxInterval),
		slog.Bool("dry_run", e.opts.DryRun),
	)

	for {
		if ctx.Err() != nil {
			break
		}

		e.RunCycle(ctx)

		delay := e.delay()
		e.logger.Debug("waiting for next cycle", slog.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	e.logger.Info("auto-reply engine stopped")
	return nil
}

// RunCycle executes exactly one cycle. Failures are logged and reported in
// the returned CycleReport; none of them is returned as an error.
func (e *Engine) RunCycle(ctx context.Context) (report CycleReport) {
	report.Started = e.now()

	ctx, span := instrumentation.StartSpan(ctx, "autoreply.cycle",
		instrumentation.NewSpanAttributeBuilder().
			WithMailbox(logging.AnonymizeEmail(e.opts.Mailbox)).
			WithDryRun(e.opts.DryRun).
			Build()...,
	)
	defer span.End()

	var t tally
	defer func() {
		report.Duration = e.now().Sub(report.Started)
		report.Replied = int(t.replied.Load())
		report.Unlabeled = int(t.unlabeled.Load())
		report.Skipped = int(t.skipped.Load())
		report.Failed = int(t.failed.Load())
		e.finishCycle(ctx, span, report)
	}()

	cred, err := e.auth.Credential(ctx)
	if err != nil {
		report.Err = err
		e.logger.Error("failed to obtain credential, retrying next cycle", logging.Err(err))
		return report
	}

	summaries, err := e.store.ListMessages(ctx, cred, e.opts.Mailbox)
	if err != nil {
		report.Err = err
		e.logger.Error("failed to list messages", logging.Err(err))
		return report
	}
	report.Listed = len(summaries)

	handledID, err := e.labels.Lookup(ctx, cred)
	if err != nil {
		report.Err = fmt.Errorf("resolve label %q: %w", e.opts.HandledLabel, err)
		e.logger.Error("failed to resolve handled label", logging.Err(err))
		return report
	}

	threads := e.selectCandidates(ctx, summaries, handledID, &t)

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for _, th := range threads {
		g.Go(func() error {
			e.processThread(ctx, cred, th, &t)
			return nil
		})
	}
	_ = g.Wait()

	return report
}

// threadCandidates are the eligible messages of one thread in listing
// order. At most one of them is answered.
type threadCandidates struct {
	threadID string
	messages []mailbox.MessageSummary
}

// selectCandidates filters the listing down to messages that may need a
// reply and groups them by thread, keeping threads in order of first
// appearance.
func (e *Engine) selectCandidates(ctx context.Context, summaries []mailbox.MessageSummary, handledID string, t *tally) []threadCandidates {
	listed := make(map[string]struct{}, len(summaries))
	for _, s := range summaries {
		listed[s.ID] = struct{}{}
	}
	e.malformed.Retain(listed)

	index := make(map[string]int, len(summaries))
	var threads []threadCandidates

	for _, s := range summaries {
		reason := ""
		switch {
		case s.HasLabel(e.opts.HandledLabel, handledID):
			reason = instrumentation.SkipHandled
		case s.HasLabel(mailbox.LabelSent):
			reason = instrumentation.SkipSent
		case e.malformed.Exhausted(s.ID):
			reason = instrumentation.SkipMalformed
		}

		if reason != "" {
			e.skip(ctx, t, s, reason)
			continue
		}

		i, ok := index[s.ThreadID]
		if !ok {
			i = len(threads)
			index[s.ThreadID] = i
			threads = append(threads, threadCandidates{threadID: s.ThreadID})
		}
		threads[i].messages = append(threads[i].messages, s)
	}

	return threads
}

func (e *Engine) skip(ctx context.Context, t *tally, s mailbox.MessageSummary, reason string) {
	t.skipped.Add(1)
	e.metrics.RecordSkip(ctx, reason)
	e.logger.Debug("skipping message",
		logging.MessageID(s.ID), logging.ThreadID(s.ThreadID), logging.Reason(reason))
}

// processThread answers the first message of the thread that can be
// answered. A message whose sender cannot be used or that fails to fetch
// hands over to the next one; once a reply has been attempted the rest are
// skipped.
func (e *Engine) processThread(ctx context.Context, cred mailbox.Credential, th threadCandidates, t *tally) {
	for i, s := range th.messages {
		if ctx.Err() != nil {
			return
		}
		if e.processMessage(ctx, cred, s, t) {
			for _, rest := range th.messages[i+1:] {
				e.skip(ctx, t, rest, instrumentation.SkipDuplicateThread)
			}
			return
		}
	}
}

// processMessage fetches, answers and labels one message. It never fails
// the cycle. It reports whether a reply was attempted, which settles the
// thread for this cycle.
func (e *Engine) processMessage(ctx context.Context, cred mailbox.Credential, s mailbox.MessageSummary, t *tally) bool {
	ctx, span := instrumentation.StartSpan(ctx, "autoreply.message",
		instrumentation.NewSpanAttributeBuilder().WithMessage(s.ID, s.ThreadID).Build()...,
	)
	defer span.End()

	logger := logging.WithMessage(e.logger, s.ID, s.ThreadID)

	detail, err := e.store.GetMessage(ctx, cred, e.opts.Mailbox, s.ID)
	if err != nil {
		var malformed *mailbox.MalformedSenderError
		if errors.As(err, &malformed) {
			attempts := e.malformed.Record(s.ID)
			t.skipped.Add(1)
			e.metrics.RecordSkip(ctx, instrumentation.SkipMalformed)
			instrumentation.SetSpanOutcome(span, instrumentation.SkipMalformed)
			logger.Warn("skipping message with unusable sender",
				logging.Err(err), slog.Int("attempts", attempts))
			return false
		}

		t.failed.Add(1)
		e.metrics.RecordSkip(ctx, instrumentation.SkipFetchError)
		instrumentation.SetSpanError(span, err)
		logger.Error("failed to fetch message", logging.Err(err))
		return false
	}

	if strings.EqualFold(detail.SenderAddress, e.opts.Mailbox) {
		t.skipped.Add(1)
		e.metrics.RecordSkip(ctx, instrumentation.SkipSelf)
		instrumentation.SetSpanOutcome(span, instrumentation.SkipSelf)
		logger.Debug("skipping message from own mailbox")
		return false
	}

	msg := mailbox.Message{
		From:    e.opts.Mailbox,
		To:      detail.SenderAddress,
		Subject: ReplySubject(detail.Subject),
		Body:    e.opts.ReplyText,

		InReplyTo:  detail.MessageID,
		References: detail.ReplyReferences(),
	}
	logger = logger.With(logging.SenderHash(msg.To))

	audit := instrumentation.NewReplyAudit(s.ID, s.ThreadID, msg.To).
		WithSubject(msg.Subject).
		WithSpanContext(ctx)
	audit.DryRun = e.opts.DryRun

	if e.opts.DryRun {
		t.replied.Add(1)
		e.metrics.RecordReply(ctx, instrumentation.StatusDryRun, logging.ExtractDomain(msg.To))
		e.audit.LogReply(ctx, audit.Complete(nil))
		instrumentation.SetSpanOutcome(span, instrumentation.StatusDryRun)
		logger.Info("dry run: would reply", slog.String("subject", msg.Subject))
		return true
	}

	if err := e.mailer.Send(ctx, msg); err != nil {
		t.failed.Add(1)
		e.metrics.RecordReply(ctx, instrumentation.StatusError, logging.ExtractDomain(msg.To))
		e.audit.LogReply(ctx, audit.Complete(err))
		instrumentation.SetSpanError(span, err)
		logger.Error("failed to send reply, thread left unlabeled for retry", logging.Err(err))
		return true
	}

	t.replied.Add(1)
	e.metrics.RecordReply(ctx, instrumentation.StatusSuccess, logging.ExtractDomain(msg.To))

	if err := e.markHandled(ctx, cred, s.ThreadID); err != nil {
		t.unlabeled.Add(1)
		e.audit.LogReply(ctx, audit.Complete(nil))
		instrumentation.SetSpanError(span, err)
		logger.Error("reply sent but thread not labeled, it will be answered again", logging.Err(err))
		return true
	}

	audit.Labeled = true
	e.audit.LogReply(ctx, audit.Complete(nil))
	instrumentation.SetSpanOutcome(span, "replied")
	instrumentation.SetSpanSuccess(span)
	logger.Info("replied to message")
	return true
}

func (e *Engine) markHandled(ctx context.Context, cred mailbox.Credential, threadID string) error {
	labelID, err := e.labels.Ensure(ctx, cred)
	if err != nil {
		return fmt.Errorf("resolve label %q: %w", e.opts.HandledLabel, err)
	}
	if err := e.store.AddLabelToThread(ctx, cred, e.opts.Mailbox, threadID, labelID); err != nil {
		e.labels.Invalidate()
		return err
	}
	return nil
}

func (e *Engine) finishCycle(ctx context.Context, span trace.Span, report CycleReport) {
	status := instrumentation.StatusSuccess
	if !report.OK() {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, report.Err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	e.metrics.RecordCycle(ctx, status, report.Listed, report.Duration)

	if report.OK() {
		e.logger.Info("cycle complete",
			slog.Int("listed", report.Listed),
			slog.Int("replied", report.Replied),
			slog.Int("skipped", report.Skipped),
			slog.Int("failed", report.Failed),
			slog.Int("unlabeled", report.Unlabeled),
			slog.Duration(logging.KeyDuration, report.Duration),
		)
	}

	for _, fn := range e.observers {
		fn(report)
	}
}
