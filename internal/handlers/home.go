package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ferrywell/genchat-web-ui/internal/session"
)

type homePageData struct {
	CredentialSet bool
	Busy          bool
	KeyError      string
	Messages      []message
}

// HandleHome serves the widget page. Until a credential has been accepted it
// shows the password-masked key form gating the chat surface; afterwards it
// shows the scrollable message list with the full transcript.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	status := m.session.Status()

	data := homePageData{
		CredentialSet: status != session.StatusAwaitingCredential,
		Busy:          status == session.StatusStreaming,
	}

	if data.CredentialSet {
		msgs, err := m.viewMessages(m.session.Transcript())
		if err != nil {
			m.logger.Error("Failed to render transcript", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Messages = msgs
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
