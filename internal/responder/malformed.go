package responder

import "sync"

// malformedTracker counts failed sender parses per message ID.
type malformedTracker struct {
	max int

	mu       sync.Mutex
	attempts map[string]int
}

func newMalformedTracker(max int) *malformedTracker {
	return &malformedTracker{max: max, attempts: make(map[string]int)}
}

// Exhausted reports whether id has used up its attempts. A zero max never
// exhausts.
func (t *malformedTracker) Exhausted(id string) bool {
	if t.max <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts[id] >= t.max
}

// Record notes one more failed attempt for id and returns the new count.
func (t *malformedTracker) Record(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[id]++
	return t.attempts[id]
}

// Retain drops every ID not present in ids.
func (t *malformedTracker) Retain(ids map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.attempts {
		if _, ok := ids[id]; !ok {
			delete(t.attempts, id)
		}
	}
}

func (t *malformedTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}
