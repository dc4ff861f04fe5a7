package session

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ferrywell/genchat-web-ui/internal/models"
	"github.com/google/uuid"
)

// LLM represents a language model interface that provides chat functionality.
// It accepts a context and the conversation so far, returning an iterator
// that yields response text fragments and potential errors.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// ProviderFactory builds a provider client from a runtime credential. For API
// providers the credential is the API key; for self-hosted providers it is
// the server URL. Construction fails for an unusable credential and must
// leave no side effects.
type ProviderFactory func(credential string) (LLM, error)

// Status describes where the session is in its lifecycle.
type Status int

const (
	// StatusAwaitingCredential means no provider client has been accepted yet.
	StatusAwaitingCredential Status = iota
	// StatusReady means a credential is set and no request is in flight.
	StatusReady
	// StatusStreaming means a response is currently being generated.
	StatusStreaming
)

// Sentinel errors returned by SubmitMessage and SubmitCredential. Callers map
// these to user-facing behavior; none of them mutate session state.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a request is already in flight")
	ErrNoCredential = errors.New("no credential has been set")
	ErrClosed       = errors.New("session is closed")
)

// ErrorReply is the fixed text shown in place of an assistant response when
// generation fails. It fully replaces any partial output already streamed.
const ErrorReply = "Sorry, something went wrong while generating a response. " +
	"Please try again, or check that your API key is still valid."

// Controller owns the credential handle and the chat transcript, and gates
// message submission so at most one provider request is in flight. The
// transcript is append-only; messages are never removed or reordered. All
// exported methods are safe for concurrent use.
type Controller struct {
	mu         sync.Mutex
	factory    ProviderFactory
	llm        LLM
	transcript []models.Message
	busy       bool
	closed     bool

	onUpdate func(models.Message)

	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewController creates a session controller in the AwaitingCredential state.
// The transcript starts with a single assistant welcome message when welcome
// is non-empty.
func NewController(factory ProviderFactory, welcome string, logger *slog.Logger) *Controller {
	c := &Controller{
		factory: factory,
		logger:  logger.With(slog.String("module", "session")),
	}
	if welcome != "" {
		c.transcript = append(c.transcript, models.Message{
			ID:        uuid.New().String(),
			Sender:    models.SenderAssistant,
			Text:      welcome,
			Timestamp: time.Now(),
		})
	}
	return c
}

// OnUpdate registers the callback invoked with a copy of a message after
// every applied fragment and on the terminal streaming transition. It must be
// set before the first SubmitMessage call and is invoked outside the
// controller lock, so the callback may call back into the controller.
func (c *Controller) OnUpdate(fn func(models.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Status reports the current session state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.llm == nil:
		return StatusAwaitingCredential
	case c.busy:
		return StatusStreaming
	default:
		return StatusReady
	}
}

// Transcript returns a copy of the transcript in display order.
func (c *Controller) Transcript() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// SubmitCredential builds a provider client from the raw credential and
// stores it. On failure the previous state is kept untouched, so a session
// that was AwaitingCredential stays there and an already-working client keeps
// serving. Resubmission replaces the handle, but never while a request is
// streaming.
func (c *Controller) SubmitCredential(raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.busy {
		return ErrBusy
	}

	llm, err := c.factory(raw)
	if err != nil {
		c.logger.Error("Failed to build provider client", slog.String("err", err.Error()))
		return err
	}

	c.llm = llm
	c.logger.Info("Provider client ready")
	return nil
}

// SubmitMessage appends the user's message and an empty streaming assistant
// placeholder to the transcript, then starts consuming the provider's
// response in the background. Empty or whitespace-only input, a missing
// credential, and an in-flight request are all rejected with sentinel errors
// and leave the transcript untouched.
func (c *Controller) SubmitMessage(text string) (models.Message, models.Message, error) {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return models.Message{}, models.Message{}, ErrClosed
	case c.llm == nil:
		return models.Message{}, models.Message{}, ErrNoCredential
	case c.busy:
		return models.Message{}, models.Message{}, ErrBusy
	case trimmed == "":
		return models.Message{}, models.Message{}, ErrEmptyMessage
	}

	userMsg := models.Message{
		ID:        uuid.New().String(),
		Sender:    models.SenderUser,
		Text:      trimmed,
		Timestamp: time.Now(),
	}
	placeholder := models.Message{
		ID:        uuid.New().String(),
		Sender:    models.SenderAssistant,
		Timestamp: time.Now(),
		Streaming: true,
	}

	c.transcript = append(c.transcript, userMsg, placeholder)
	c.busy = true

	// Snapshot the conversation context before releasing the lock; the
	// placeholder itself is not part of what the provider sees.
	history := make([]models.Message, len(c.transcript)-1)
	copy(history, c.transcript[:len(c.transcript)-1])

	llm := c.llm
	c.wg.Add(1)
	go c.stream(llm, history, placeholder.ID)

	return userMsg, placeholder, nil
}

// stream drives one provider request to its terminal state. The request is
// detached from any HTTP request lifetime on purpose: fragments keep flowing
// after the submitting request has returned.
func (c *Controller) stream(llm LLM, history []models.Message, msgID string) {
	defer c.wg.Done()

	r := newRenderer(c, msgID)
	err := r.consume(llm.Chat(context.Background(), history))
	c.finish(msgID, err)
}

// applyFragment writes the full accumulated text into the target message and
// reports whether the session is still alive. A false return tells the
// renderer to stop consuming.
func (c *Controller) applyFragment(msgID, text string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	msg, ok := c.setText(msgID, text)
	c.mu.Unlock()

	if ok {
		c.notify(msg)
	}
	return ok
}

// finish applies the terminal transition for one request: on failure the
// placeholder's text is replaced wholesale by ErrorReply. Either way the
// streaming flag drops and the session returns to Ready. After Close this is
// a no-op.
func (c *Controller) finish(msgID string, streamErr error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.busy = false

	var msg models.Message
	ok := false
	for i := range c.transcript {
		if c.transcript[i].ID == msgID {
			if streamErr != nil {
				c.logger.Error("Generation failed", slog.String("err", streamErr.Error()))
				c.transcript[i].Text = ErrorReply
			}
			c.transcript[i].Streaming = false
			msg, ok = c.transcript[i], true
			break
		}
	}
	c.mu.Unlock()

	if ok {
		c.notify(msg)
	}
}

// setText mutates the message under the already-held lock and returns a copy.
func (c *Controller) setText(msgID, text string) (models.Message, bool) {
	for i := range c.transcript {
		if c.transcript[i].ID == msgID {
			c.transcript[i].Text = text
			return c.transcript[i], true
		}
	}
	return models.Message{}, false
}

func (c *Controller) notify(msg models.Message) {
	c.mu.Lock()
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// Close tears the session down. Any in-flight stream keeps draining its
// provider connection, but no further transcript mutation or update callback
// happens past this point.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Wait blocks until any in-flight stream consumption has finished. Used by
// graceful shutdown after Close, and by tests to observe terminal state.
func (c *Controller) Wait() {
	c.wg.Wait()
}
