package app

import (
	"sync"

	"quiz-duel-service/internal/domain"
)

// QueueEntry is a waiting connection and the mode it wants to play.
type QueueEntry struct {
	Conn domain.Connection
	Mode domain.ModeSignature
}

// Matchmaker buckets waiting connections by exact mode key and pairs them FIFO.
type Matchmaker struct {
	live func(connID string) bool

	mu      sync.Mutex
	buckets map[string][]QueueEntry
	index   map[string]string
}

// NewMatchmaker builds a queue; live is consulted when a pair is drawn.
func NewMatchmaker(live func(connID string) bool) *Matchmaker {
	if live == nil {
		live = func(string) bool { return true }
	}
	return &Matchmaker{
		live:    live,
		buckets: make(map[string][]QueueEntry),
		index:   make(map[string]string),
	}
}

// Join enqueues entry and returns the two oldest entries of its bucket once it
// holds two. Joining twice with the same mode is a no-op; joining with another
// mode moves the entry. If a drawn entry is no longer live, the live one goes
// back to the head of the bucket and no pair is returned.
func (m *Matchmaker) Join(entry QueueEntry) ([2]QueueEntry, bool) {
	key := entry.Mode.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.index[entry.Conn.ID]; ok {
		if current == key {
			return [2]QueueEntry{}, false
		}
		m.removeLocked(entry.Conn.ID)
	}
	m.buckets[key] = append(m.buckets[key], entry)
	m.index[entry.Conn.ID] = key

	bucket := m.buckets[key]
	if len(bucket) < 2 {
		return [2]QueueEntry{}, false
	}

	a, b := bucket[0], bucket[1]
	m.buckets[key] = bucket[2:]
	delete(m.index, a.Conn.ID)
	delete(m.index, b.Conn.ID)

	aLive, bLive := m.live(a.Conn.ID), m.live(b.Conn.ID)
	if aLive && bLive {
		m.compactLocked(key)
		return [2]QueueEntry{a, b}, true
	}
	if bLive {
		m.requeueLocked(key, b)
	}
	if aLive {
		m.requeueLocked(key, a)
	}
	m.compactLocked(key)
	return [2]QueueEntry{}, false
}

// Leave removes connID from whatever bucket holds it.
func (m *Matchmaker) Leave(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(connID)
}

// Requeue puts a previously drawn entry back at the head of its bucket so it
// is paired next. An entry that already rejoined the queue is left alone.
func (m *Matchmaker) Requeue(entry QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[entry.Conn.ID]; ok {
		return
	}
	m.requeueLocked(entry.Mode.Key(), entry)
}

// Waiting returns how many entries wait for mode.
func (m *Matchmaker) Waiting(mode domain.ModeSignature) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets[mode.Key()])
}

// Queued reports whether connID waits in any bucket.
func (m *Matchmaker) Queued(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[connID]
	return ok
}

func (m *Matchmaker) requeueLocked(key string, e QueueEntry) {
	m.buckets[key] = append([]QueueEntry{e}, m.buckets[key]...)
	m.index[e.Conn.ID] = key
}

func (m *Matchmaker) removeLocked(connID string) bool {
	key, ok := m.index[connID]
	if !ok {
		return false
	}
	delete(m.index, connID)
	bucket := m.buckets[key]
	for i, e := range bucket {
		if e.Conn.ID == connID {
			m.buckets[key] = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	m.compactLocked(key)
	return true
}

func (m *Matchmaker) compactLocked(key string) {
	if len(m.buckets[key]) == 0 {
		delete(m.buckets, key)
	}
}
