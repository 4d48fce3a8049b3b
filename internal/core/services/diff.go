package services

import (
	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// Diff is the resolved set of mirror operations for one change log.
type Diff struct {
	// Upsert ids in first-seen order.
	Upsert []string
	// Delete ids in first-seen order.
	Delete []string
}

// Empty returns true when there is nothing to apply.
func (d Diff) Empty() bool {
	return len(d.Upsert) == 0 && len(d.Delete) == 0
}

// DiffResolver folds change events into upsert and delete sets.
type DiffResolver struct {
	trackedLabel string
}

// NewDiffResolver creates a resolver tracking the given label.
func NewDiffResolver(trackedLabel string) *DiffResolver {
	if trackedLabel == "" {
		trackedLabel = domain.LabelInbox
	}
	return &DiffResolver{trackedLabel: trackedLabel}
}

type opClass int

const (
	classIgnore opClass = iota
	classAdd
	classRemove
)

// Resolve returns at most one operation per message id.
// When a message has both add-class and remove-class events the last one wins.
func (r *DiffResolver) Resolve(events []domain.ChangeEvent) Diff {
	order := make([]string, 0, len(events))
	last := make(map[string]opClass, len(events))

	for _, ev := range events {
		class := r.classify(ev)
		if class == classIgnore || ev.MessageID == "" {
			continue
		}
		if _, seen := last[ev.MessageID]; !seen {
			order = append(order, ev.MessageID)
		}
		last[ev.MessageID] = class
	}

	var d Diff
	for _, id := range order {
		switch last[id] {
		case classAdd:
			d.Upsert = append(d.Upsert, id)
		case classRemove:
			d.Delete = append(d.Delete, id)
		}
	}
	return d
}

func (r *DiffResolver) classify(ev domain.ChangeEvent) opClass {
	switch ev.Kind {
	case domain.ChangeMessageAdded:
		return classAdd
	case domain.ChangeMessageRemoved:
		return classRemove
	case domain.ChangeLabelAdded:
		if domain.HasLabel(ev.LabelIDs, r.trackedLabel) || domain.HasLabel(ev.LabelIDs, domain.LabelUnread) {
			return classAdd
		}
	case domain.ChangeLabelRemoved:
		if domain.HasLabel(ev.LabelIDs, r.trackedLabel) {
			return classRemove
		}
		// Read state changed; refetch so the mirrored flag follows.
		if domain.HasLabel(ev.LabelIDs, domain.LabelUnread) {
			return classAdd
		}
	}
	return classIgnore
}
