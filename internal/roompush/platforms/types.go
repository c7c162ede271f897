package platforms

import "context"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is the platform-neutral notification. A non-empty PanelKey asks the
// adapter to edit one standing message instead of posting a new one.
type Message struct {
	PanelKey    string
	Title       string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []Field
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}
