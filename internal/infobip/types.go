package infobip

// WhatsApp send-API payloads. Every outbound message carries the business
// sender number, the recipient and a per-send correlation ID.

// TextMessage is the body for /message/text.
type TextMessage struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	MessageID string      `json:"messageId"`
	Content   TextContent `json:"content"`
}

// TextContent holds a plain text body.
type TextContent struct {
	Text string `json:"text"`
}

// ButtonsMessage is the body for /message/interactive/buttons.
type ButtonsMessage struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	MessageID string         `json:"messageId"`
	Content   ButtonsContent `json:"content"`
}

// ButtonsContent is an interactive body with reply buttons.
type ButtonsContent struct {
	Body   Body          `json:"body"`
	Action ButtonsAction `json:"action"`
}

// Body is the text shown above interactive controls.
type Body struct {
	Text string `json:"text"`
}

// ButtonsAction lists the reply buttons in display order.
type ButtonsAction struct {
	Buttons []ReplyButton `json:"buttons"`
}

// ReplyButton is a quick-reply button. ID comes back as the reply id.
type ReplyButton struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListMessage is the body for /message/interactive/list.
type ListMessage struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	MessageID string      `json:"messageId"`
	Content   ListContent `json:"content"`
}

// ListContent is an interactive body with a sectioned option list.
type ListContent struct {
	Body   Body       `json:"body"`
	Action ListAction `json:"action"`
}

// ListAction holds the list button prompt and its sections.
type ListAction struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section groups list rows.
type Section struct {
	Title string `json:"title,omitempty"`
	Rows  []Row  `json:"rows"`
}

// Row is a single selectable list option.
type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SendResponse is the provider's answer to a send request.
type SendResponse struct {
	To           string     `json:"to"`
	MessageCount int        `json:"messageCount"`
	MessageID    string     `json:"messageId"`
	Status       SendStatus `json:"status"`
}

// SendStatus describes the accepted state of a sent message.
type SendStatus struct {
	GroupID     int    `json:"groupId"`
	GroupName   string `json:"groupName"`
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
