// Package moderation tracks each room's admin identity and muted-user set.
// The first non-anonymous user to join a room becomes its admin and stays
// admin for the room's lifetime; only the admin may mute, unmute, or delete.
package moderation

import (
	"errors"
	"sync"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
)

// ErrUnauthorized is returned when a non-admin attempts a privileged action.
var ErrUnauthorized = errors.New("moderation: not the room admin")

type roomModeration struct {
	admin  string
	muted  map[string]struct{}
	seeded bool
}

// State is the in-memory moderation state, seeded from the repository the
// first time a room is touched. Persistence of changes is the caller's job.
type State struct {
	mu    sync.Mutex
	rooms map[string]*roomModeration
}

// NewState creates empty moderation state.
func NewState() *State {
	return &State{rooms: make(map[string]*roomModeration)}
}

func (s *State) room(name string) *roomModeration {
	rm, ok := s.rooms[name]
	if !ok {
		rm = &roomModeration{muted: make(map[string]struct{})}
		s.rooms[name] = rm
	}
	return rm
}

// Seeded reports whether the room's state was loaded from storage.
func (s *State) Seeded(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[room]
	return ok && rm.seeded
}

// Seed loads persisted admin and mute records for a room. Idempotent; the
// first seed wins so a concurrent join cannot clobber live state.
func (s *State) Seed(room, admin string, muted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.room(room)
	if rm.seeded {
		return
	}
	if rm.admin == "" {
		rm.admin = admin
	}
	for _, u := range muted {
		rm.muted[u] = struct{}{}
	}
	rm.seeded = true
}

// PromoteIfVacant assigns username as the room admin when none exists yet.
// First mover wins; Anonymous is never eligible. Returns true when the
// promotion happened (the caller persists it and announces the event).
func (s *State) PromoteIfVacant(room, username string) bool {
	if username == domain.Anonymous || username == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.room(room)
	if rm.admin != "" {
		return false
	}
	rm.admin = username
	return true
}

// Admin returns the room's admin username, empty if unassigned.
func (s *State) Admin(room string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[room]
	if !ok {
		return ""
	}
	return rm.admin
}

// IsAdmin reports whether username is the room's assigned admin.
func (s *State) IsAdmin(room, username string) bool {
	if username == "" || username == domain.Anonymous {
		return false
	}
	return s.Admin(room) == username
}

// Mute marks target as muted. Fails with ErrUnauthorized unless admin holds
// the room. Idempotent: muting an already-muted target reports success with
// changed=false so no duplicate record is written.
func (s *State) Mute(room, admin, target string) (changed bool, err error) {
	if !s.IsAdmin(room, admin) {
		return false, ErrUnauthorized
	}
	if target == "" || target == domain.Anonymous {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.room(room)
	if _, already := rm.muted[target]; already {
		return false, nil
	}
	rm.muted[target] = struct{}{}
	return true, nil
}

// Unmute clears a mute. No-op when the target was never muted.
func (s *State) Unmute(room, admin, target string) (changed bool, err error) {
	if !s.IsAdmin(room, admin) {
		return false, ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.room(room)
	if _, ok := rm.muted[target]; !ok {
		return false, nil
	}
	delete(rm.muted, target)
	return true, nil
}

// IsMuted reports whether username is muted in the room.
func (s *State) IsMuted(room, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[room]
	if !ok {
		return false
	}
	_, muted := rm.muted[username]
	return muted
}
