package domain

// OpKind is the type of a batch operation.
type OpKind string

const (
	OpUpsert OpKind = "upsert"
	OpDelete OpKind = "delete"
)

// BatchOp is one idempotent mirror operation.
type BatchOp struct {
	Kind      OpKind
	MessageID string
	Message   *MirroredMessage // set for OpUpsert
}

// SyncBatch is the set of operations applied to the mirror as one unit.
type SyncBatch struct {
	AccountID string
	// ReplaceAll clears the account's mirrored messages before applying Ops.
	ReplaceAll bool
	Ops        []BatchOp
	// Cursor is committed after the batch has been applied.
	Cursor Cursor
}

// NewSyncBatch creates an empty batch for an account.
func NewSyncBatch(accountID string) *SyncBatch {
	return &SyncBatch{AccountID: accountID}
}

// Upsert appends a replace-by-id operation.
func (b *SyncBatch) Upsert(msg *MirroredMessage) {
	b.Ops = append(b.Ops, BatchOp{Kind: OpUpsert, MessageID: msg.MessageID, Message: msg})
}

// Delete appends a delete operation. Deleting an absent id is a no-op.
func (b *SyncBatch) Delete(messageID string) {
	b.Ops = append(b.Ops, BatchOp{Kind: OpDelete, MessageID: messageID})
}

// Len returns the number of operations.
func (b *SyncBatch) Len() int {
	return len(b.Ops)
}

// UpsertIDs returns the ids of upserted messages in batch order.
func (b *SyncBatch) UpsertIDs() []string {
	return b.idsOf(OpUpsert)
}

// DeleteIDs returns the ids of deleted messages in batch order.
func (b *SyncBatch) DeleteIDs() []string {
	return b.idsOf(OpDelete)
}

// Message returns the upserted message with the given id, or nil.
func (b *SyncBatch) Message(messageID string) *MirroredMessage {
	for _, op := range b.Ops {
		if op.Kind == OpUpsert && op.MessageID == messageID {
			return op.Message
		}
	}
	return nil
}

func (b *SyncBatch) idsOf(kind OpKind) []string {
	ids := make([]string, 0, len(b.Ops))
	for _, op := range b.Ops {
		if op.Kind == kind {
			ids = append(ids, op.MessageID)
		}
	}
	return ids
}

// ApplyResult reports what an applied batch changed.
type ApplyResult struct {
	// Inserted holds the ids that were not present before the apply.
	Inserted []string
	Updated  int
	Deleted  int
}
