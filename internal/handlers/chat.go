package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/ferrywell/genchat-web-ui/internal/models"
	"github.com/ferrywell/genchat-web-ui/internal/session"
)

// message is the view model handed to the message templates.
type message struct {
	ID        string
	Label     string
	CSSClass  string
	Content   template.HTML
	Timestamp time.Time

	StreamingState string
}

func streamingState(msg models.Message) string {
	switch {
	case msg.Streaming && msg.Text == "":
		return "loading"
	case msg.Streaming:
		return "streaming"
	default:
		return "ended"
	}
}

func (m Main) viewMessage(msg models.Message) (message, error) {
	content, err := m.markdown.render(msg.Text)
	if err != nil {
		return message{}, err
	}
	style := msg.Sender.Style()
	return message{
		ID:             msg.ID,
		Label:          style.Label,
		CSSClass:       style.CSSClass,
		Content:        template.HTML(content), //nolint:gosec // goldmark drops raw HTML from the source
		Timestamp:      msg.Timestamp,
		StreamingState: streamingState(msg),
	}, nil
}

func (m Main) viewMessages(msgs []models.Message) ([]message, error) {
	out := make([]message, len(msgs))
	for i, msg := range msgs {
		vm, err := m.viewMessage(msg)
		if err != nil {
			return nil, err
		}
		out[i] = vm
	}
	return out, nil
}

// HandleCredential accepts the API key form submission and builds the
// provider client from it. A rejected credential re-renders the key form with
// a blocking error notice and leaves the session awaiting a credential; an
// accepted one redirects to the chat surface.
func (m Main) HandleCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.session.SubmitCredential(r.FormValue("api_key")); err != nil {
		m.logger.Error("Credential rejected", slog.String(errLoggerKey, err.Error()))
		w.WriteHeader(http.StatusUnprocessableEntity)
		data := homePageData{KeyError: "Could not set up the provider client: " + err.Error()}
		if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
			m.logger.Error("Failed to render key form", slog.String(errLoggerKey, err.Error()))
		}
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleChats processes message submissions through HTTP POST requests. It
// expects a "message" form field; empty or whitespace-only input and
// submissions made while a previous request is still streaming are rejected
// without touching the transcript. For accepted submissions it appends the
// user message plus a streaming assistant placeholder and returns both
// rendered partials, which the widget script swaps into the message list
// before subscribing to the placeholder's SSE topic.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userMsg, placeholder, err := m.session.SubmitMessage(r.FormValue("message"))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyMessage):
			http.Error(w, "Message is required", http.StatusBadRequest)
		case errors.Is(err, session.ErrBusy):
			http.Error(w, "A response is still being generated", http.StatusConflict)
		case errors.Is(err, session.ErrNoCredential):
			http.Error(w, "Set an API key first", http.StatusUnprocessableEntity)
		default:
			m.logger.Error("Failed to submit message", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	um, err := m.viewMessage(userMsg)
	if err != nil {
		m.logger.Error("Failed to render user message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "user_message", um); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	am, err := m.viewMessage(placeholder)
	if err != nil {
		m.logger.Error("Failed to render placeholder", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "ai_message", am); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
