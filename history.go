package parley

import "sync"

// historyLog is the append-only conversation transcript. Messages are never
// removed individually; amendments rewrite content in place via the id
// index (streaming deltas, error replacement). reset drops everything, used
// only by SeedFirstAssistant.
type historyLog struct {
	mu    sync.RWMutex
	msgs  []Message
	index map[string]int
}

func newHistoryLog() *historyLog {
	return &historyLog{index: make(map[string]int)}
}

// append adds m to the log and indexes it by id.
func (h *historyLog) append(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.index[m.ID] = len(h.msgs)
	h.msgs = append(h.msgs, m)
}

// amend rewrites the content of the message with the given id.
// Returns false when the id is unknown.
func (h *historyLog) amend(id, content string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	i, ok := h.index[id]
	if !ok {
		return false
	}
	h.msgs[i].Content = content
	return true
}

// get returns the message with the given id.
func (h *historyLog) get(id string) (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i, ok := h.index[id]
	if !ok {
		return Message{}, false
	}
	return h.msgs[i], true
}

// snapshot returns a copy of the transcript.
func (h *historyLog) snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// last returns the most recent message.
func (h *historyLog) last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.msgs) == 0 {
		return Message{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}

// len returns the number of messages.
func (h *historyLog) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}

// reset drops the whole transcript and index.
func (h *historyLog) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = nil
	h.index = make(map[string]int)
}
