package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

func TestToRawMessage(t *testing.T) {
	rawContent := "From: sender@example.com\r\nTo: recipient@example.com\r\nSubject: Test\r\n\r\nHello!"

	for name, encode := range map[string]func([]byte) string{
		"padded":   base64.URLEncoding.EncodeToString,
		"unpadded": base64.RawURLEncoding.EncodeToString,
	} {
		t.Run(name, func(t *testing.T) {
			msg := &gmail.Message{
				Id:           "msg-123",
				ThreadId:     "thread-456",
				Raw:          encode([]byte(rawContent)),
				LabelIds:     []string{"INBOX", "UNREAD"},
				Snippet:      "Hello!",
				HistoryId:    789,
				InternalDate: 1234567890000,
			}

			raw, err := toRawMessage(msg)
			require.NoError(t, err)

			assert.Equal(t, "msg-123", raw.ID)
			assert.Equal(t, "thread-456", raw.ThreadID)
			assert.Equal(t, domain.Cursor("789"), raw.HistoryID)
			assert.Equal(t, int64(1234567890000), raw.InternalDate)
			assert.Equal(t, "Hello!", raw.Snippet)
			assert.Equal(t, []string{"INBOX", "UNREAD"}, raw.LabelIDs)
			assert.Equal(t, []byte(rawContent), raw.Raw)
		})
	}
}

func TestToRawMessage_InvalidBase64(t *testing.T) {
	raw, err := toRawMessage(&gmail.Message{Id: "msg-123", Snippet: "hi", Raw: "not-valid-base64!!!"})

	assert.ErrorIs(t, err, domain.ErrMalformedMessage)
	require.NotNil(t, raw)
	assert.Equal(t, "msg-123", raw.ID)
	assert.Equal(t, "hi", raw.Snippet)
	assert.Nil(t, raw.Raw)
}

func TestToChangeEvents(t *testing.T) {
	records := []*gmail.History{
		{
			Id:            101,
			MessagesAdded: []*gmail.HistoryMessageAdded{{Message: &gmail.Message{Id: "a"}}},
		},
		{
			Id:              102,
			MessagesDeleted: []*gmail.HistoryMessageDeleted{{Message: &gmail.Message{Id: "b"}}},
			LabelsAdded: []*gmail.HistoryLabelAdded{
				{Message: &gmail.Message{Id: "c"}, LabelIds: []string{"UNREAD"}},
			},
			LabelsRemoved: []*gmail.HistoryLabelRemoved{
				{Message: &gmail.Message{Id: "d"}, LabelIds: []string{"INBOX"}},
				{LabelIds: []string{"INBOX"}},
			},
		},
	}

	events := toChangeEvents(records)

	assert.Equal(t, []domain.ChangeEvent{
		{Kind: domain.ChangeMessageAdded, MessageID: "a"},
		{Kind: domain.ChangeMessageRemoved, MessageID: "b"},
		{Kind: domain.ChangeLabelAdded, MessageID: "c", LabelIDs: []string{"UNREAD"}},
		{Kind: domain.ChangeLabelRemoved, MessageID: "d", LabelIDs: []string{"INBOX"}},
	}, events)
}

func TestToChangeEvents_Empty(t *testing.T) {
	assert.Empty(t, toChangeEvents(nil))
}
