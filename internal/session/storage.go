package session

import (
	"sort"
	"sync"
	"time"

	"sondajes/adapters/excel"
	"sondajes/domain/core"
	"sondajes/domain/table"
	apperrors "sondajes/internal/errors"
)

// Session is one user's upload and the table loaded from it. Tables are
// never shared between sessions.
type Session struct {
	ID         core.ID           `json:"id"`
	FileName   string            `json:"file_name"`
	Digest     core.Hash         `json:"digest"`
	Sheets     []string          `json:"sheets"`
	Options    excel.LoadOptions `json:"options"`
	Table      *table.Table      `json:"-"`
	Warnings   []string          `json:"warnings,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	LastAccess time.Time         `json:"last_access"`

	source []byte
}

// Source returns the uploaded workbook bytes, kept so the sheet can be
// changed without uploading again.
func (s Session) Source() []byte {
	return s.source
}

// Loaded reports whether a sheet has been loaded for the session.
func (s Session) Loaded() bool {
	return s.Table != nil
}

// Store keeps sessions in memory and expires them after an idle TTL.
type Store struct {
	mu       sync.Mutex
	sessions map[core.ID]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store; a non-positive ttl disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[core.ID]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new upload and sweeps expired sessions.
func (s *Store) Create(fileName string, source []byte, sheets []string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	now := s.now()
	sess := &Session{
		ID:         core.NewID(),
		FileName:   fileName,
		Digest:     core.NewHash(source),
		Sheets:     append([]string(nil), sheets...),
		CreatedAt:  now,
		LastAccess: now,
		source:     source,
	}
	s.sessions[sess.ID] = sess
	return *sess
}

// Get returns a snapshot of the session and refreshes its idle timer.
func (s *Store) Get(id core.ID) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expiredLocked(sess) {
		delete(s.sessions, id)
		return Session{}, apperrors.NotFound("session " + id.String())
	}
	sess.LastAccess = s.now()
	return *sess, nil
}

// SetTable records the table loaded for the session, replacing any earlier one.
func (s *Store) SetTable(id core.ID, opts excel.LoadOptions, t *table.Table, warnings []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expiredLocked(sess) {
		delete(s.sessions, id)
		return apperrors.NotFound("session " + id.String())
	}
	sess.Options = opts
	sess.Table = t
	sess.Warnings = append([]string(nil), warnings...)
	sess.LastAccess = s.now()
	return nil
}

// Delete drops a session.
func (s *Store) Delete(id core.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// IDs lists live session IDs, sorted.
func (s *Store) IDs() []core.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]core.ID, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if !s.expiredLocked(sess) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) sweepLocked() int {
	removed := 0
	for id, sess := range s.sessions {
		if s.expiredLocked(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) expiredLocked(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.LastAccess) > s.ttl
}
