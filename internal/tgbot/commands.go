package tgbot

import (
	"strings"
)

// Inbound is a chat message reduced to what the router needs.
type Inbound struct {
	ChatID    int64
	ChatTitle string
	Private   bool
	MessageID int
	From      Sender
	Text      string
}

type Sender struct {
	UserID      int64
	DisplayName string
}

// Messenger delivers the router's replies.
type Messenger interface {
	SendText(chatID int64, text string) error
	DeleteMessage(chatID int64, messageID int) error
}

// parseCommand splits "/submit@RosterBot http://x" into ("submit", ["http://x"]).
// The "." and "!" prefixes of the old bot are accepted too.
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil, false
	}
	switch text[0] {
	case '/', '.', '!':
	default:
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	name = strings.ToLower(name)
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}
