package domain

// ChangeKind tags a change-log entry.
type ChangeKind string

const (
	ChangeMessageAdded   ChangeKind = "message_added"
	ChangeMessageRemoved ChangeKind = "message_removed"
	ChangeLabelAdded     ChangeKind = "label_added"
	ChangeLabelRemoved   ChangeKind = "label_removed"
)

// ChangeEvent is one entry of the remote change log.
type ChangeEvent struct {
	Kind      ChangeKind
	MessageID string
	// LabelIDs holds the labels added or removed for label events.
	LabelIDs []string
}

// ChangePage is one page of the remote change log.
type ChangePage struct {
	Events []ChangeEvent
	// Cursor is the change-log position reported with this page.
	Cursor        Cursor
	NextPageToken string
}
