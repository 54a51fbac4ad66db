// Package session keeps the short-lived per-sender state the gateway needs:
// which senders are mid-conversation and which provider message IDs were
// already processed.
package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Session is the gateway's view of one sender's conversation.
type Session struct {
	Sender        string
	LastMessageID string
	LastSeen      time.Time
}

// Store is an in-memory TTL store. Expired entries are purged on an interval
// of half their TTL.
type Store struct {
	sessions *cache.Cache
	seen     *cache.Cache
	now      func() time.Time
}

// New creates a Store. sessionTTL bounds how long an idle sender is
// remembered; dedupTTL bounds how long a message ID is remembered.
func New(sessionTTL, dedupTTL time.Duration) *Store {
	return &Store{
		sessions: cache.New(sessionTTL, sessionTTL/2),
		seen:     cache.New(dedupTTL, dedupTTL/2),
		now:      time.Now,
	}
}

// Touch records activity from sender and refreshes its TTL.
func (s *Store) Touch(sender, messageID string) Session {
	sess := Session{
		Sender:        sender,
		LastMessageID: messageID,
		LastSeen:      s.now(),
	}
	s.sessions.SetDefault(sender, sess)
	return sess
}

// Get returns the live session for sender.
func (s *Store) Get(sender string) (Session, bool) {
	v, ok := s.sessions.Get(sender)
	if !ok {
		return Session{}, false
	}
	return v.(Session), true
}

// MarkSeen records a provider message ID. It returns true if the ID was
// already recorded and has not expired. Empty IDs are never deduplicated.
func (s *Store) MarkSeen(id string) bool {
	if id == "" {
		return false
	}
	return s.seen.Add(id, struct{}{}, cache.DefaultExpiration) != nil
}

// Active returns the number of live sessions.
func (s *Store) Active() int {
	return s.sessions.ItemCount()
}

// Forget removes a recorded message ID so a redelivery is processed again.
func (s *Store) Forget(id string) {
	s.seen.Delete(id)
}
