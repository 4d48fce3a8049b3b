package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

func TestDiffResolver_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		events     []domain.ChangeEvent
		wantUpsert []string
		wantDelete []string
	}{
		{
			name:   "empty",
			events: nil,
		},
		{
			name:       "add then remove deletes",
			events:     []domain.ChangeEvent{added("A"), removed("A")},
			wantDelete: []string{"A"},
		},
		{
			name:       "remove then add upserts",
			events:     []domain.ChangeEvent{removed("B"), added("B")},
			wantUpsert: []string{"B"},
		},
		{
			name:       "duplicates collapse in first seen order",
			events:     []domain.ChangeEvent{added("C"), added("D"), added("C")},
			wantUpsert: []string{"C", "D"},
		},
		{
			name:       "tracked label added",
			events:     []domain.ChangeEvent{labelAdded("E", domain.LabelInbox)},
			wantUpsert: []string{"E"},
		},
		{
			name:       "tracked label removed",
			events:     []domain.ChangeEvent{labelRemoved("F", domain.LabelInbox)},
			wantDelete: []string{"F"},
		},
		{
			name:       "unread changes refresh",
			events:     []domain.ChangeEvent{labelRemoved("G", domain.LabelUnread), labelAdded("H", domain.LabelUnread)},
			wantUpsert: []string{"G", "H"},
		},
		{
			name:   "unrelated labels ignored",
			events: []domain.ChangeEvent{labelAdded("I", "IMPORTANT"), labelRemoved("J", "Label_42")},
		},
		{
			name:       "archive after read refresh deletes",
			events:     []domain.ChangeEvent{labelRemoved("K", domain.LabelUnread), labelRemoved("K", domain.LabelInbox)},
			wantDelete: []string{"K"},
		},
		{
			name:   "events without id ignored",
			events: []domain.ChangeEvent{added("")},
		},
	}

	r := NewDiffResolver("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Resolve(tt.events)
			assert.Equal(t, tt.wantUpsert, d.Upsert)
			assert.Equal(t, tt.wantDelete, d.Delete)
			assert.Equal(t, len(tt.wantUpsert) == 0 && len(tt.wantDelete) == 0, d.Empty())
		})
	}
}

func TestDiffResolver_CustomTrackedLabel(t *testing.T) {
	r := NewDiffResolver("Label_7")

	d := r.Resolve([]domain.ChangeEvent{
		labelAdded("A", "Label_7"),
		labelAdded("B", domain.LabelInbox),
		labelRemoved("C", "Label_7"),
	})

	assert.Equal(t, []string{"A"}, d.Upsert)
	assert.Equal(t, []string{"C"}, d.Delete)
}

func TestDiffResolver_SetsAreDisjoint(t *testing.T) {
	r := NewDiffResolver(domain.LabelInbox)
	d := r.Resolve([]domain.ChangeEvent{
		added("A"), added("B"), removed("A"), labelAdded("A", domain.LabelInbox), removed("B"),
	})

	assert.Equal(t, []string{"A"}, d.Upsert)
	assert.Equal(t, []string{"B"}, d.Delete)
}
