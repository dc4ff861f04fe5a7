package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	genchatwebui "github.com/ferrywell/genchat-web-ui"
	"github.com/ferrywell/genchat-web-ui/internal/models"
	"github.com/ferrywell/genchat-web-ui/internal/session"
	"github.com/tmaxmax/go-sse"
)

const errLoggerKey = "err"

// Main handles the core functionality of the chat widget, wiring the session
// controller to the browser: it renders HTML templates, accepts credential
// and message submissions, and pushes streamed response fragments to the
// client over server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  *markdown

	session *session.Controller

	logger *slog.Logger
}

// SSE event types for real-time updates.
var (
	messagesSSEType     = sse.Type("messages")
	closeMessageSSEType = sse.Type("closeMessage")
)

// NewMain creates a Main instance bound to the given session controller. It
// parses the embedded HTML templates and configures the SSE server so each
// client subscribes to the topic of the one message it is watching. It also
// registers itself as the controller's update sink, so every applied fragment
// is re-rendered and published.
func NewMain(sess *session.Controller, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		genchatwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	m := Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				// We create a message-specific topic if the client requests updates for a particular message
				messageID := s.Req.URL.Query().Get("message_id")
				if messageID != "" {
					topics = append(topics, messageIDTopic(messageID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		markdown:  newMarkdown(),
		session:   sess,
		logger:    logger.With(slog.String("module", "handlers")),
	}

	sess.OnUpdate(m.publishUpdate)

	return m, nil
}

func messageIDTopic(messageID string) string {
	return fmt.Sprintf("message-%s", messageID)
}

// publishUpdate pushes the current rendered state of a message to its SSE
// topic. Called by the session controller after every fragment and on the
// terminal streaming transition.
func (m Main) publishUpdate(msg models.Message) {
	content, err := m.markdown.render(msg.Text)
	if err != nil {
		m.logger.Error("Failed to render message",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		content = template.HTMLEscapeString(msg.Text)
	}

	e := sse.Message{Type: messagesSSEType}
	e.AppendData(content)
	if err := m.sseSrv.Publish(&e, messageIDTopic(msg.ID)); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	if !msg.Streaming {
		e := sse.Message{Type: closeMessageSSEType}
		e.AppendData("bye")
		if err := m.sseSrv.Publish(&e, messageIDTopic(msg.ID)); err != nil {
			m.logger.Error("Failed to publish close event",
				slog.String("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
		}
	}
}

// HandleSSE serves the event stream the widget subscribes to for streamed
// message updates.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close
// message to all connected clients and waits up to 5 seconds for connections
// to terminate. After the timeout, any remaining connections are forcefully
// closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
