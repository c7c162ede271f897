package ws

const ProtocolVersion = "1.0"

const (
	TypeValue = "value"
	TypeError = "error"
)

// ValueMessage carries the current value at the subscribed path.
type ValueMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Path            string `json:"path"`
	Exists          bool   `json:"exists"`
	Value           any    `json:"value"`
}

// ErrorMessage ends a subscription.
type ErrorMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Error           string `json:"error"`
}

// Envelope decodes either message.
type Envelope struct {
	Type   string `json:"type"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Value  any    `json:"value"`
	Error  string `json:"error"`
}
