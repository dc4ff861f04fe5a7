package session_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/ferrywell/genchat-web-ui/internal/models"
	"github.com/ferrywell/genchat-web-ui/internal/session"
)

const welcome = "Welcome! How can I help?"

// scriptedLLM yields a fixed fragment sequence, optionally ending with a
// fault. When release is set, the stream blocks before the first fragment so
// tests can observe the in-flight state.
type scriptedLLM struct {
	fragments []string
	err       error
	release   chan struct{}
}

func (s *scriptedLLM) Chat(_ context.Context, _ []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.release != nil {
			<-s.release
		}
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

// updateRecorder collects the text of every update callback invocation.
type updateRecorder struct {
	mu      sync.Mutex
	updates []models.Message
}

func (r *updateRecorder) record(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, msg)
}

func (r *updateRecorder) all() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, len(r.updates))
	copy(out, r.updates)
	return out
}

func factoryFor(llm session.LLM) session.ProviderFactory {
	return func(credential string) (session.LLM, error) {
		if strings.TrimSpace(credential) == "" {
			return nil, errors.New("api key is required")
		}
		return llm, nil
	}
}

func newController(t *testing.T, llm session.LLM) (*session.Controller, *updateRecorder) {
	t.Helper()
	c := session.NewController(factoryFor(llm), welcome, discardLogger())
	rec := &updateRecorder{}
	c.OnUpdate(rec.record)
	return c, rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewControllerSeedsWelcomeMessage(t *testing.T) {
	c, _ := newController(t, &scriptedLLM{})

	if got := c.Status(); got != session.StatusAwaitingCredential {
		t.Errorf("Status() = %v, want StatusAwaitingCredential", got)
	}

	tr := c.Transcript()
	if len(tr) != 1 {
		t.Fatalf("Transcript() length = %d, want 1", len(tr))
	}
	if tr[0].Sender != models.SenderAssistant || tr[0].Text != welcome || tr[0].Streaming {
		t.Errorf("welcome message = %+v", tr[0])
	}
}

func TestSubmitCredentialFailureLeavesStateUntouched(t *testing.T) {
	c, _ := newController(t, &scriptedLLM{})

	if err := c.SubmitCredential("   "); err == nil {
		t.Fatal("SubmitCredential() with blank key should fail")
	}

	if got := c.Status(); got != session.StatusAwaitingCredential {
		t.Errorf("Status() = %v, want StatusAwaitingCredential", got)
	}
	if got := len(c.Transcript()); got != 1 {
		t.Errorf("Transcript() length = %d, want 1", got)
	}
}

func TestSubmitMessageValidation(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		message    string
		wantErr    error
	}{
		{
			name:    "no credential",
			message: "Hello",
			wantErr: session.ErrNoCredential,
		},
		{
			name:       "empty message",
			credential: "key",
			message:    "",
			wantErr:    session.ErrEmptyMessage,
		},
		{
			name:       "whitespace-only message",
			credential: "key",
			message:    " \t\n ",
			wantErr:    session.ErrEmptyMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(t, &scriptedLLM{fragments: []string{"unused"}})
			if tt.credential != "" {
				if err := c.SubmitCredential(tt.credential); err != nil {
					t.Fatal(err)
				}
			}

			before := len(c.Transcript())
			_, _, err := c.SubmitMessage(tt.message)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SubmitMessage() error = %v, want %v", err, tt.wantErr)
			}

			c.Wait()
			if got := len(c.Transcript()); got != before {
				t.Errorf("Transcript() length = %d, want %d (no mutation)", got, before)
			}
			if c.Status() == session.StatusStreaming {
				t.Error("rejected submission must not set the busy flag")
			}
		})
	}
}

func TestStreamAppliesFragmentsInOrder(t *testing.T) {
	c, rec := newController(t, &scriptedLLM{fragments: []string{"Hi", " there", "!"}})
	if err := c.SubmitCredential("key"); err != nil {
		t.Fatal(err)
	}

	_, placeholder, err := c.SubmitMessage("Hello")
	if err != nil {
		t.Fatal(err)
	}
	c.Wait()

	tr := c.Transcript()
	if len(tr) != 3 {
		t.Fatalf("Transcript() length = %d, want 3", len(tr))
	}
	if tr[0].Text != welcome {
		t.Errorf("transcript[0].Text = %q, want welcome message", tr[0].Text)
	}
	if tr[1].Sender != models.SenderUser || tr[1].Text != "Hello" {
		t.Errorf("transcript[1] = %+v, want user message %q", tr[1], "Hello")
	}
	if tr[2].Sender != models.SenderAssistant || tr[2].Text != "Hi there!" || tr[2].Streaming {
		t.Errorf("transcript[2] = %+v, want assistant %q with streaming ended", tr[2], "Hi there!")
	}

	// One update per fragment with the running accumulation, then the
	// terminal update with streaming off.
	wantTexts := []string{"Hi", "Hi there", "Hi there!", "Hi there!"}
	updates := rec.all()
	if len(updates) != len(wantTexts) {
		t.Fatalf("update count = %d, want %d", len(updates), len(wantTexts))
	}
	for i, u := range updates {
		if u.ID != placeholder.ID {
			t.Errorf("updates[%d].ID = %q, want placeholder ID %q", i, u.ID, placeholder.ID)
		}
		if u.Text != wantTexts[i] {
			t.Errorf("updates[%d].Text = %q, want %q", i, u.Text, wantTexts[i])
		}
		wantStreaming := i < len(wantTexts)-1
		if u.Streaming != wantStreaming {
			t.Errorf("updates[%d].Streaming = %v, want %v", i, u.Streaming, wantStreaming)
		}
	}

	if got := c.Status(); got != session.StatusReady {
		t.Errorf("Status() after stream end = %v, want StatusReady", got)
	}
}

func TestStreamFaultReplacesPartialOutput(t *testing.T) {
	c, _ := newController(t, &scriptedLLM{
		fragments: []string{"partial ", "output"},
		err:       errors.New("connection reset"),
	})
	if err := c.SubmitCredential("key"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := c.SubmitMessage("Hello"); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	tr := c.Transcript()
	last := tr[len(tr)-1]
	if last.Text != session.ErrorReply {
		t.Errorf("assistant text = %q, want fixed error reply", last.Text)
	}
	if last.Streaming {
		t.Error("streaming flag should be false after a fault")
	}
	if got := c.Status(); got != session.StatusReady {
		t.Errorf("Status() after fault = %v, want StatusReady (session stays usable)", got)
	}
}

func TestSubmitMessageWhileBusyIsNoOp(t *testing.T) {
	release := make(chan struct{})
	c, _ := newController(t, &scriptedLLM{fragments: []string{"done"}, release: release})
	if err := c.SubmitCredential("key"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := c.SubmitMessage("first"); err != nil {
		t.Fatal(err)
	}
	if got := c.Status(); got != session.StatusStreaming {
		t.Fatalf("Status() = %v, want StatusStreaming", got)
	}

	before := len(c.Transcript())
	if _, _, err := c.SubmitMessage("second"); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("SubmitMessage() while busy error = %v, want ErrBusy", err)
	}
	if got := len(c.Transcript()); got != before {
		t.Errorf("Transcript() length = %d, want %d (no mutation while busy)", got, before)
	}

	// The credential handle must not be swapped out under a live stream
	// either.
	if err := c.SubmitCredential("other"); !errors.Is(err, session.ErrBusy) {
		t.Errorf("SubmitCredential() while busy error = %v, want ErrBusy", err)
	}

	close(release)
	c.Wait()

	if got := c.Status(); got != session.StatusReady {
		t.Errorf("Status() after completion = %v, want StatusReady", got)
	}
	if _, _, err := c.SubmitMessage("third"); err != nil {
		t.Errorf("SubmitMessage() after completion error = %v", err)
	}
	c.Wait()
}

func TestCloseAbandonsInFlightStream(t *testing.T) {
	release := make(chan struct{})
	c, rec := newController(t, &scriptedLLM{fragments: []string{"never shown"}, release: release})
	if err := c.SubmitCredential("key"); err != nil {
		t.Fatal(err)
	}

	_, placeholder, err := c.SubmitMessage("Hello")
	if err != nil {
		t.Fatal(err)
	}

	c.Close()
	close(release)
	c.Wait()

	// No state mutation after teardown: the placeholder keeps its pre-close
	// shape and no update was delivered.
	tr := c.Transcript()
	last := tr[len(tr)-1]
	if last.ID != placeholder.ID || last.Text != "" || !last.Streaming {
		t.Errorf("placeholder after close = %+v, want untouched", last)
	}
	if got := len(rec.all()); got != 0 {
		t.Errorf("updates after close = %d, want 0", got)
	}

	if _, _, err := c.SubmitMessage("again"); !errors.Is(err, session.ErrClosed) {
		t.Errorf("SubmitMessage() after close error = %v, want ErrClosed", err)
	}
}
