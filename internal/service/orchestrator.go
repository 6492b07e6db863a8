// Package service contains the conversation orchestrator — the pipeline
// between message intake and the completion service — and the read-side
// query service.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"chat-brain/backend/internal/ai"
	"chat-brain/backend/internal/models"
	"chat-brain/backend/internal/notify"
	"chat-brain/backend/internal/queue"
	"chat-brain/backend/internal/ratelimit"
	"chat-brain/backend/internal/session"
	"chat-brain/backend/internal/store"
	"chat-brain/backend/internal/sweeper"
	"chat-brain/backend/pkg/errors"
	"chat-brain/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_received_total",
		Help: "Messages accepted into the processing queue",
	})
	messagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_processed_success_total",
		Help: "Messages processed to completion",
	})
	messagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_processed_error_total",
		Help: "Messages that reached terminal failure",
	})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "message_queue_depth",
		Help: "Messages currently waiting in the queue",
	})
	conversationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversations_expired_total",
		Help: "Conversations closed by the expiry sweeper",
	})
)

// OrchestratorOptions tunes the processing pipeline
type OrchestratorOptions struct {
	MaxRetries       int
	MaxContentLength int
	ContextWindow    int
	AssistantUserID  string
	WorkerInterval   time.Duration
	SweepInterval    time.Duration
}

// DefaultOrchestratorOptions returns the pipeline defaults
func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		MaxRetries:       3,
		MaxContentLength: 4000,
		ContextWindow:    5,
		AssistantUserID:  "assistant",
		WorkerInterval:   100 * time.Millisecond,
		SweepInterval:    300 * time.Second,
	}
}

type result struct {
	response string
	err      error
}

// Orchestrator validates, admits, queues and processes inbound messages,
// driving the conversation store and the completion client, and owning the
// retry/escalation policy around them.
type Orchestrator struct {
	queue       *queue.MessageQueue
	gate        *ratelimit.Gate
	sessions    *session.Tracker
	store       store.ConversationStore
	completions ai.CompletionClient
	notifier    notify.Notifier
	sweeper     *sweeper.Sweeper
	log         *logger.Logger
	opts        OrchestratorOptions

	pendingMu sync.Mutex
	pending   map[string]chan result

	draining  atomic.Bool
	processed atomic.Uint64
	errored   atomic.Uint64
	startedAt time.Time
}

// NewOrchestrator wires the pipeline components together
func NewOrchestrator(
	q *queue.MessageQueue,
	gate *ratelimit.Gate,
	sessions *session.Tracker,
	st store.ConversationStore,
	completions ai.CompletionClient,
	notifier notify.Notifier,
	sw *sweeper.Sweeper,
	log *logger.Logger,
	opts OrchestratorOptions,
) *Orchestrator {
	return &Orchestrator{
		queue:       q,
		gate:        gate,
		sessions:    sessions,
		store:       st,
		completions: completions,
		notifier:    notifier,
		sweeper:     sw,
		log:         log,
		opts:        opts,
		pending:     make(map[string]chan result),
		startedAt:   time.Now(),
	}
}

// Submit validates and admits a message, places it on the queue, and waits
// for the worker to deliver the terminal outcome. Validation, admission and
// backpressure errors fail fast with no side effects.
func (o *Orchestrator) Submit(ctx context.Context, msg *models.Message) (string, error) {
	if o.draining.Load() {
		return "", errors.NewQueueFullError("service is shutting down")
	}

	if err := o.Validate(msg); err != nil {
		return "", err
	}
	if err := o.gate.Allow(msg.UserID); err != nil {
		return "", err
	}

	ch := make(chan result, 1)
	o.pendingMu.Lock()
	o.pending[msg.ID] = ch
	o.pendingMu.Unlock()

	if err := o.queue.Push(msg); err != nil {
		o.dropWaiter(msg.ID)
		return "", err
	}
	messagesReceived.Inc()
	queueDepth.Inc()

	select {
	case res := <-ch:
		return res.response, res.err
	case <-ctx.Done():
		o.dropWaiter(msg.ID)
		return "", errors.NewInternalError(ctx.Err())
	}
}

// Process runs the full pipeline for one message synchronously: validate,
// admit, then a single processing attempt against store and upstream.
// The queue-mediated path (Submit + Run) is the production entrypoint; this
// is the single-attempt contract it is built from.
func (o *Orchestrator) Process(ctx context.Context, msg *models.Message) (string, error) {
	if err := o.Validate(msg); err != nil {
		return "", err
	}
	if err := o.gate.Allow(msg.UserID); err != nil {
		return "", err
	}

	response, err := o.processResolved(ctx, msg)
	if err != nil {
		return "", err
	}

	o.recordSuccess(msg)
	return response, nil
}

// Validate checks the message against the submission rules. Content length
// is measured in characters, not bytes.
func (o *Orchestrator) Validate(msg *models.Message) error {
	if msg.UserID == "" {
		return errors.NewInvalidMessageError("user_id must not be empty")
	}
	if msg.Content == "" {
		return errors.NewInvalidMessageError("content must not be empty")
	}
	if utf8.RuneCountInString(msg.Content) > o.opts.MaxContentLength {
		return errors.NewInvalidMessageError(
			fmt.Sprintf("content exceeds %d characters", o.opts.MaxContentLength))
	}
	return nil
}

// Run drains the queue until the context is cancelled: at most one message
// per cycle, a short sleep between cycles, and an expiry sweep once enough
// wall-clock time has accumulated. The elapsed-time check cannot skip a
// sweep when a cycle overruns, unlike a timestamp-modulo trigger.
func (o *Orchestrator) Run(ctx context.Context) {
	o.log.Info("starting message processing loop",
		"worker_interval", o.opts.WorkerInterval.String(),
		"sweep_interval", o.opts.SweepInterval.String(),
	)

	lastSweep := time.Now()
	for {
		select {
		case <-ctx.Done():
			o.log.Info("message processing loop stopped")
			return
		case <-time.After(o.opts.WorkerInterval):
		}

		if msg := o.queue.Pop(); msg != nil {
			queueDepth.Dec()
			o.handle(ctx, msg)
		}

		if time.Since(lastSweep) >= o.opts.SweepInterval {
			lastSweep = time.Now()
			closed, err := o.sweeper.Sweep(ctx)
			if err != nil {
				o.log.LogError(err, "expiry sweep failed")
			} else {
				conversationsExpired.Add(float64(closed))
			}
		}
	}
}

// Drain stops accepting new submissions. Messages already queued are
// abandoned on shutdown by design; the queue is not durable.
func (o *Orchestrator) Drain() {
	o.draining.Store(true)
}

// handle processes one dequeued message and applies the retry policy.
// A transient failure re-enqueues the message at the tail with retry_count
// incremented, so a retried message loses its original position — a
// deliberate trade of ordering for simplicity.
func (o *Orchestrator) handle(ctx context.Context, msg *models.Message) {
	response, err := o.processResolved(ctx, msg)
	if err == nil {
		o.recordSuccess(msg)
		o.deliver(msg.ID, result{response: response})
		return
	}

	if errors.IsTransient(err) && msg.RetryCount < o.opts.MaxRetries {
		msg.RetryCount++
		if pushErr := o.queue.Push(msg); pushErr == nil {
			queueDepth.Inc()
			o.log.Warn("message processing failed, requeued",
				"message_id", msg.ID,
				"user_id", msg.UserID,
				"retry_count", msg.RetryCount,
				"error", err.Error(),
			)
			return
		}
		// No room to requeue; fall through to terminal failure
	}

	o.escalate(ctx, msg, err)
}

// processResolved runs the store/upstream stages for a message whose
// validation and admission already passed.
func (o *Orchestrator) processResolved(ctx context.Context, msg *models.Message) (string, error) {
	start := time.Now()

	conversation, err := o.resolveConversation(ctx, msg)
	if err != nil {
		return "", err
	}

	if _, err := o.store.SaveMessage(ctx, msg.ID, conversation.ID, msg.UserID, msg.Content,
		msg.ThreadID, msg.Platform, models.JSONMap(msg.Metadata)); err != nil {
		return "", errors.NewStoreError(err)
	}

	recent, err := o.store.GetRecentMessages(ctx, msg.UserID, o.opts.ContextWindow)
	if err != nil {
		return "", errors.NewStoreError(err)
	}

	prompt := o.buildPrompt(msg, recent)

	response, err := o.completions.Complete(ctx, prompt)
	if err != nil {
		return "", errors.NewUpstreamError(err)
	}

	if _, err := o.store.SaveMessage(ctx, uuid.NewString(), conversation.ID, o.opts.AssistantUserID,
		response, msg.ThreadID, msg.Platform, models.JSONMap(msg.Metadata)); err != nil {
		return "", errors.NewStoreError(err)
	}

	if err := o.store.RecordResponseMetrics(ctx, msg.ID, len(response), time.Since(start)); err != nil {
		// Metrics are best-effort; the exchange itself succeeded
		o.log.LogError(err, "failed to record response metrics", "message_id", msg.ID)
	}

	return response, nil
}

// resolveConversation finds the user's active conversation inside the
// 24-hour window or creates one. A uniqueness conflict on create means
// either a concurrent instance won the race (use the winner's row) or the
// user's previous conversation outlived its window but the sweeper has not
// closed it yet (close it here and retry the create — a message arriving
// after the window must open a new conversation, not fail).
func (o *Orchestrator) resolveConversation(ctx context.Context, msg *models.Message) (*models.Conversation, error) {
	conversation, err := o.store.FindActiveConversation(ctx, msg.UserID)
	if err != nil {
		return nil, errors.NewStoreError(err)
	}
	if conversation != nil {
		return conversation, nil
	}

	o.log.Debug("creating new conversation", "user_id", msg.UserID, "platform", msg.Platform)
	conversation, err = o.store.CreateConversation(ctx, msg.UserID, msg.Platform, models.JSONMap(msg.Metadata))
	if err == nil {
		return conversation, nil
	}
	if !store.IsUniqueViolation(err) {
		return nil, errors.NewStoreError(err)
	}

	existing, findErr := o.store.FindActiveConversation(ctx, msg.UserID)
	if findErr == nil && existing != nil {
		return existing, nil
	}

	// The blocking row is active but outside the lookup window: expired,
	// just not swept yet.
	closed, closeErr := o.store.CloseUserExpiredConversations(ctx, msg.UserID)
	if closeErr != nil {
		return nil, errors.NewStoreError(closeErr)
	}
	if closed > 0 {
		o.log.Info("closed expired conversation ahead of sweep", "user_id", msg.UserID, "closed", closed)
	}

	conversation, err = o.store.CreateConversation(ctx, msg.UserID, msg.Platform, models.JSONMap(msg.Metadata))
	if err != nil {
		return nil, errors.NewStoreError(err)
	}
	return conversation, nil
}

// buildPrompt renders the recent exchange as alternating Human/Assistant
// lines followed by the current message and a trailing Assistant cue.
// The store returns newest-first; the prompt wants chronological order.
func (o *Orchestrator) buildPrompt(msg *models.Message, recent []models.StoredMessage) string {
	var b strings.Builder

	history := make([]models.StoredMessage, 0, len(recent))
	for _, m := range recent {
		// The inbound message is already persisted by the time context is
		// fetched; it belongs at the end, not in the history block.
		if m.ID == msg.ID {
			continue
		}
		history = append(history, m)
	}

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for i := len(history) - 1; i >= 0; i-- {
			m := history[i]
			role := "Human"
			if m.UserID == o.opts.AssistantUserID {
				role = "Assistant"
			}
			b.WriteString(fmt.Sprintf("%s: %s\n", role, m.Content))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Human: %s\n\nAssistant:", msg.Content))
	return b.String()
}

// escalate marks the message failed and sends the best-effort notification.
// The caller, if still waiting, receives the terminal error.
func (o *Orchestrator) escalate(ctx context.Context, msg *models.Message, cause error) {
	o.errored.Add(1)
	messagesFailed.Inc()

	o.log.Error("message processing failed permanently",
		"message_id", msg.ID,
		"user_id", msg.UserID,
		"retry_count", msg.RetryCount,
		"error", cause.Error(),
	)

	if err := o.store.MarkMessageFailed(ctx, msg.ID); err != nil {
		o.log.LogError(err, "failed to mark message failed", "message_id", msg.ID)
	}

	if o.notifier != nil {
		o.notifier.NotifyFailure(ctx, msg.ID, msg.UserID, cause.Error())
	}

	o.deliver(msg.ID, result{err: cause})
}

func (o *Orchestrator) recordSuccess(msg *models.Message) {
	o.processed.Add(1)
	messagesProcessed.Inc()
	o.sessions.Touch(msg.UserID, msg.Platform, msg.ThreadID)
	o.sessions.SetLastAction(msg.UserID, models.ActionContinue)
}

func (o *Orchestrator) deliver(messageID string, res result) {
	o.pendingMu.Lock()
	ch, exists := o.pending[messageID]
	delete(o.pending, messageID)
	o.pendingMu.Unlock()

	if exists {
		ch <- res
	}
}

func (o *Orchestrator) dropWaiter(messageID string) {
	o.pendingMu.Lock()
	delete(o.pending, messageID)
	o.pendingMu.Unlock()
}

// Stats reports pipeline counters for the stats endpoint
type Stats struct {
	ActiveSessions    int    `json:"active_conversations"`
	MessagesProcessed uint64 `json:"messages_processed"`
	ErrorCount        uint64 `json:"error_count"`
	QueueDepth        int    `json:"queue_depth"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}

// Stats returns a snapshot of the orchestrator's counters
func (o *Orchestrator) Stats() Stats {
	return Stats{
		ActiveSessions:    o.sessions.Active(),
		MessagesProcessed: o.processed.Load(),
		ErrorCount:        o.errored.Load(),
		QueueDepth:        o.queue.Len(),
		UptimeSeconds:     int64(time.Since(o.startedAt).Seconds()),
	}
}
