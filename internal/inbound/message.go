package inbound

// Provider message type discriminants understood by Normalize.
const (
	TypeText        = "TEXT"
	TypeListReply   = "INTERACTIVE_LIST_REPLY"
	TypeButtonReply = "INTERACTIVE_BUTTON_REPLY"
	TypeLocation    = "LOCATION"
)

// Message is the canonical message forwarded to the bot backend.
type Message struct {
	Sender   string         `json:"sender"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Event is a normalized provider event. It carries the canonical Message plus
// provider fields the gateway needs but the bot backend never sees.
type Event struct {
	MessageID string // provider message ID, empty if the provider omitted it
	Type      string // raw message type discriminant
	Message   Message
}
