// Package roompush mirrors room activity to chat webhooks: every new history
// entry as its own message and a standings panel that is edited in place.
package roompush

import "time"

const (
	KindHistory   = "history"
	KindStandings = "standings"
)

// PushTarget is one webhook watching one room. Empty Events means every kind.
type PushTarget struct {
	Platform string   `json:"platform"`
	Endpoint string   `json:"endpoint"`
	Secret   string   `json:"secret"`
	RoomID   string   `json:"room_id"`
	Events   []string `json:"events"`
	Enabled  bool     `json:"enabled"`
}

type Config struct {
	Enabled             bool
	ConfigPath          string
	ConfigReload        time.Duration
	Targets             []PushTarget
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	PanelUpdateInterval time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

type MessageField struct {
	Name   string
	Value  string
	Inline bool
}

type FormattedMessage struct {
	PanelKey    string
	Title       string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []MessageField
}

type pushJob struct {
	Target        PushTarget
	Formatted     FormattedMessage
	Attempt       int
	PanelTerminal bool
}

func (j pushJob) key() string {
	return targetKey(j.Target)
}

func targetKey(t PushTarget) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.RoomID
}
