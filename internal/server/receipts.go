package server

// receiptTracker records which usernames have observed which messages.
// A receipt set exists exactly as long as its message does; both are
// owned by the room goroutine.
type receiptTracker struct {
	reads map[string]map[string]struct{}
}

func newReceiptTracker() *receiptTracker {
	return &receiptTracker{reads: make(map[string]map[string]struct{})}
}

// Track creates an empty receipt set for a new message.
func (rt *receiptTracker) Track(messageId string) {
	if _, ok := rt.reads[messageId]; !ok {
		rt.reads[messageId] = make(map[string]struct{})
	}
}

// MarkRead records that a user observed a message. Reports true only
// the first time for a given (message, user) pair; unknown messages
// and repeats report false so no duplicate event is emitted.
func (rt *receiptTracker) MarkRead(messageId, username string) bool {
	set, ok := rt.reads[messageId]
	if !ok {
		return false
	}

	if _, seen := set[username]; seen {
		return false
	}
	set[username] = struct{}{}
	return true
}

func (rt *receiptTracker) HasRead(messageId, username string) bool {
	set, ok := rt.reads[messageId]
	if !ok {
		return false
	}
	_, seen := set[username]
	return seen
}

// Forget drops a message's receipts, called when the message is
// deleted.
func (rt *receiptTracker) Forget(messageId string) {
	delete(rt.reads, messageId)
}
