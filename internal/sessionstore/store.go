// Package sessionstore is the in-memory session registry (spec §3):
// ordered turns, a compact summary, the FSM resume checkpoint, and the
// schema drift correction cache, keyed by session identifier.
package sessionstore

import (
	"sync"
	"time"

	"github.com/abhishec/purple-agent/internal/fsm"
)

// minCleanupInterval is the smallest allowed TTL to prevent degenerate ticker intervals.
const minCleanupInterval = time.Millisecond

// DefaultTTL is the inactivity eviction window from spec §3.
const DefaultTTL = time.Hour

// Turn is one recorded exchange within a session.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Session holds all state for a single session identifier.
type Session struct {
	ID          string
	Turns       []Turn
	Summary     string // compact summary of older turns
	Checkpoint  *fsm.Checkpoint
	SchemaCache map[string]string // bad column name -> corrected column name
	LastUsed    time.Time
}

// Store is a thread-safe in-memory session registry with TTL eviction.
// Sessions are in-memory only per §5's shared-resource policy: a crash
// loses sessions in flight, which is acceptable because clients retry with
// fresh sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	maxTurns int
	done     chan struct{}
}

// NewStore creates a Store with the given TTL and per-session turn
// retention limit, starting a background eviction goroutine.
func NewStore(ttl time.Duration, maxTurns int) *Store {
	if ttl < minCleanupInterval {
		ttl = minCleanupInterval
	}
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		maxTurns: maxTurns,
		done:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// getOrCreate must be called with s.mu held.
func (s *Store) getOrCreate(id string) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, LastUsed: time.Now(), SchemaCache: make(map[string]string)}
		s.sessions[id] = sess
	}
	return sess
}

// AppendTurn adds a completed exchange, auto-creating the session and
// enforcing maxTurns with FIFO eviction.
func (s *Store) AppendTurn(id string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreate(id)
	sess.Turns = append(sess.Turns, turn)
	if len(sess.Turns) > s.maxTurns {
		sess.Turns = sess.Turns[len(sess.Turns)-s.maxTurns:]
	}
	sess.LastUsed = time.Now()
}

// Context atomically returns the turn history and compact summary.
func (s *Store) Context(id string) ([]Turn, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ""
	}
	result := make([]Turn, len(sess.Turns))
	copy(result, sess.Turns)
	return result, sess.Summary
}

// Compact replaces old turns with a summary, keeping the newest keepN turns.
func (s *Store) Compact(id string, summary string, keepN int) (compacted int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || len(sess.Turns) <= keepN {
		return 0
	}
	compacted = len(sess.Turns) - keepN
	sess.Summary = summary
	sess.Turns = sess.Turns[len(sess.Turns)-keepN:]
	sess.LastUsed = time.Now()
	return compacted
}

// SaveCheckpoint records the FSM resume point at the end of a task.
func (s *Store) SaveCheckpoint(id string, checkpoint fsm.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreate(id)
	sess.Checkpoint = &checkpoint
	sess.LastUsed = time.Now()
}

// Checkpoint returns the session's resume point, if any.
func (s *Store) Checkpoint(id string) (fsm.Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Checkpoint == nil {
		return fsm.Checkpoint{}, false
	}
	return *sess.Checkpoint, true
}

// ClearCheckpoint drops the resume point, e.g. once a process completes.
func (s *Store) ClearCheckpoint(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Checkpoint = nil
	}
}

// CorrectColumn looks up a previously corrected column name for id.
func (s *Store) CorrectColumn(id, badName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	name, ok := sess.SchemaCache[badName]
	return name, ok
}

// RecordColumnCorrection caches a resolved bad-name -> corrected-name
// mapping for the remainder of the session.
func (s *Store) RecordColumnCorrection(id, badName, correctedName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreate(id)
	sess.SchemaCache[badName] = correctedName
	sess.LastUsed = time.Now()
}

// Delete explicitly removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (s *Store) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			cutoff := time.Now().Add(-s.ttl)
			for id, sess := range s.sessions {
				if sess.LastUsed.Before(cutoff) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
