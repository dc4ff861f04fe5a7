package models

import "time"

// Message represents a single entry in the chat transcript. The assistant
// message created for an in-flight request starts with empty Text and
// Streaming set to true; Text is overwritten with the full accumulated
// response as fragments arrive, and Streaming flips to false exactly once,
// when the stream ends or fails.
type Message struct {
	ID        string
	Sender    Sender
	Text      string
	Timestamp time.Time

	Streaming bool
}

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	// SenderUser marks messages typed by the user.
	SenderUser Sender = "user"
	// SenderAssistant marks messages generated by the provider, including
	// the welcome message shown at session start.
	SenderAssistant Sender = "assistant"
)

// SenderStyle describes how messages from one sender are presented.
type SenderStyle struct {
	Label    string
	CSSClass string
}

var senderStyles = map[Sender]SenderStyle{
	SenderUser:      {Label: "You", CSSClass: "message-user"},
	SenderAssistant: {Label: "Assistant", CSSClass: "message-assistant"},
}

// Style returns the presentation style for the sender. Unknown senders fall
// back to the assistant style so a rendering bug never drops a message.
func (s Sender) Style() SenderStyle {
	st, ok := senderStyles[s]
	if !ok {
		return senderStyles[SenderAssistant]
	}
	return st
}
