// Package notify fans crawl results out to chat destinations.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Message is one formatted notification. Title and Content are already
// translated when translation is enabled.
type Message struct {
	Bucket  string
	ID      int
	Title   string
	Content string
	Time    string
}

// Text renders the plain-text form used by message-send sinks.
func (m Message) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", m.Bucket, m.Title)
	if m.Content != "" {
		b.WriteString("\n")
		b.WriteString(m.Content)
	}
	if m.Time != "" {
		fmt.Fprintf(&b, "\n(%s)", m.Time)
	}
	return b.String()
}

// Sink delivers a message to one destination type. Implementations must
// confine failures to their own return value: one dead destination must
// never prevent delivery to the rest.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Send delivers one message to every destination this sink covers.
	Send(ctx context.Context, msg Message) error
}
