package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// toRawMessage converts a message fetched with format=raw.
// An undecodable payload returns the metadata with a nil Raw together with
// an error wrapping domain.ErrMalformedMessage.
func toRawMessage(msg *gmail.Message) (*domain.RawMessage, error) {
	out := &domain.RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		HistoryID:    domain.CursorFromUint64(msg.HistoryId),
		InternalDate: msg.InternalDate,
		Snippet:      msg.Snippet,
		LabelIDs:     msg.LabelIds,
	}
	raw, err := decodeRaw(msg.Raw)
	if err != nil {
		return out, fmt.Errorf("%w: decode message %s: %w", domain.ErrMalformedMessage, msg.Id, err)
	}
	out.Raw = raw
	return out, nil
}

// decodeRaw decodes Gmail's base64url payload, padded or not.
func decodeRaw(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasSuffix(s, "=") {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// toChangeEvents flattens history records in log order.
func toChangeEvents(records []*gmail.History) []domain.ChangeEvent {
	var events []domain.ChangeEvent
	for _, h := range records {
		for _, a := range h.MessagesAdded {
			if a.Message != nil {
				events = append(events, domain.ChangeEvent{Kind: domain.ChangeMessageAdded, MessageID: a.Message.Id})
			}
		}
		for _, d := range h.MessagesDeleted {
			if d.Message != nil {
				events = append(events, domain.ChangeEvent{Kind: domain.ChangeMessageRemoved, MessageID: d.Message.Id})
			}
		}
		for _, l := range h.LabelsAdded {
			if l.Message != nil {
				events = append(events, domain.ChangeEvent{
					Kind: domain.ChangeLabelAdded, MessageID: l.Message.Id, LabelIDs: l.LabelIds,
				})
			}
		}
		for _, l := range h.LabelsRemoved {
			if l.Message != nil {
				events = append(events, domain.ChangeEvent{
					Kind: domain.ChangeLabelRemoved, MessageID: l.Message.Id, LabelIDs: l.LabelIds,
				})
			}
		}
	}
	return events
}
