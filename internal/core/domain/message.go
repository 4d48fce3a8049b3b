package domain

// Well-known Gmail system labels.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
	LabelChat   = "CHAT"
	LabelSpam   = "SPAM"
	LabelTrash  = "TRASH"
)

// RawMessage is a message as returned by the remote mailbox.
type RawMessage struct {
	ID           string
	ThreadID     string
	HistoryID    Cursor
	InternalDate int64 // milliseconds since epoch
	Snippet      string
	LabelIDs     []string
	Raw          []byte // RFC 2822 bytes
}

// HasLabel reports whether the message carries the label.
func (m *RawMessage) HasLabel(label string) bool {
	return HasLabel(m.LabelIDs, label)
}

// MirroredMessage is the local projection of one remote message.
type MirroredMessage struct {
	AccountID    string
	MessageID    string
	ThreadID     string
	HistoryID    Cursor
	InternalDate int64
	Date         string // display timestamp
	Snippet      string
	Subject      string
	Sender       string
	Body         string
	IsRead       bool
	Labels       []string
	// Malformed marks a placeholder row for a message whose bytes could not be parsed.
	Malformed bool
}

// Summary returns the notifier view of the message.
func (m *MirroredMessage) Summary() MessageSummary {
	return MessageSummary{
		AccountID: m.AccountID,
		MessageID: m.MessageID,
		Sender:    m.Sender,
		Subject:   m.Subject,
		Snippet:   m.Snippet,
		Date:      m.Date,
	}
}

// MessageSummary is what the notifier receives for a new message.
type MessageSummary struct {
	AccountID string `json:"account_id"`
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Snippet   string `json:"snippet"`
	Date      string `json:"date"`
}

// MessageQuery filters mirrored messages.
type MessageQuery struct {
	UnreadOnly bool
	Limit      int
}

// HasLabel reports whether labels contains label.
func HasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
