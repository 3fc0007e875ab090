// Package registry owns the only mutable shared state in the service: the
// map from room name to its live connections and presence set. It is
// explicitly constructed and injected into the session handler; callers
// never touch its internals directly.
package registry

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
)

// Conn is the registry's view of one live client connection. TrySend must
// not block: it reports false when the connection cannot accept the payload,
// which the registry treats as a dead connection.
type Conn interface {
	ID() string
	TrySend(payload []byte) bool
	Close()
}

// RegisterResult reports the presence effect of adding a connection.
type RegisterResult struct {
	// NewPresence is true when the username entered the presence set with
	// this connection, i.e. a user_joined event should be broadcast. False
	// means the user was already online elsewhere (welcome-only).
	NewPresence bool
	// Online is the presence snapshot after the mutation, sorted.
	Online []string
}

// UnregisterResult reports the presence effect of removing a connection.
type UnregisterResult struct {
	// LeftPresence is true when this was the username's last connection and
	// a user_left event should be broadcast.
	LeftPresence bool
	Online       []string
}

type roomState struct {
	conns    map[Conn]string // connection -> handshake username
	presence map[string]int  // username -> open connection count
}

// Registry maps room names to live connection sets and presence. All
// mutations take the registry lock; it is never held across I/O.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*roomState
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{rooms: make(map[string]*roomState)}
}

// Register adds a connection to the room's live set. Non-anonymous usernames
// not yet present enter the presence set.
func (r *Registry) Register(c Conn, room, username string) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		state = &roomState{
			conns:    make(map[Conn]string),
			presence: make(map[string]int),
		}
		r.rooms[room] = state
	}

	state.conns[c] = username

	res := RegisterResult{}
	if username != domain.Anonymous {
		state.presence[username]++
		res.NewPresence = state.presence[username] == 1
	}
	res.Online = state.online()
	return res
}

// Unregister removes a connection from the room's live set. When the
// username's last connection closes it leaves presence; an empty room is
// evicted from the registry (the backing store keeps the room).
func (r *Registry) Unregister(c Conn, room, username string) UnregisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		return UnregisterResult{}
	}

	if _, live := state.conns[c]; !live {
		return UnregisterResult{Online: state.online()}
	}
	delete(state.conns, c)

	res := UnregisterResult{}
	if username != domain.Anonymous {
		if state.presence[username] > 0 {
			state.presence[username]--
		}
		if state.presence[username] == 0 {
			delete(state.presence, username)
			res.LeftPresence = true
		}
	}

	if len(state.conns) == 0 {
		delete(r.rooms, room)
	}
	res.Online = state.online()
	return res
}

// BroadcastResult reports the presence effect of a fan-out.
type BroadcastResult struct {
	// Departed lists usernames whose last connection was pruned during the
	// fan-out; the caller announces their departure so presence stays
	// consistent for the survivors.
	Departed []string
	Online   []string
}

// Broadcast serializes payload once and delivers it to every live connection
// in the room. A connection that refuses the send is pruned from the live
// set and closed; remaining deliveries are unaffected. A later Unregister
// for a pruned connection reports no presence change.
func (r *Registry) Broadcast(room string, payload interface{}) BroadcastResult {
	data, err := json.Marshal(payload)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldRoom, room).Msg("broadcast payload not serializable")
		return BroadcastResult{}
	}

	var pruned []Conn
	var res BroadcastResult

	r.mu.Lock()
	state, ok := r.rooms[room]
	if ok {
		for c, username := range state.conns {
			if c.TrySend(data) {
				continue
			}
			delete(state.conns, c)
			if username != domain.Anonymous {
				if state.presence[username] > 0 {
					state.presence[username]--
				}
				if state.presence[username] == 0 {
					delete(state.presence, username)
					res.Departed = append(res.Departed, username)
				}
			}
			pruned = append(pruned, c)
		}
		if len(state.conns) == 0 {
			delete(r.rooms, room)
		}
		res.Online = state.online()
	}
	r.mu.Unlock()

	for _, c := range pruned {
		log.L().Debug().Str(log.FieldRoom, room).Str(log.FieldConnID, c.ID()).Msg("pruned dead connection during broadcast")
		c.Close()
	}
	return res
}

// Send delivers payload to a single connection, outside any room fan-out.
func (r *Registry) Send(c Conn, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		log.L().Error().Err(err).Msg("payload not serializable")
		return false
	}
	return c.TrySend(data)
}

// Online returns the sorted presence snapshot for a room.
func (r *Registry) Online(room string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		return nil
	}
	return state.online()
}

// ConnCount returns the number of live connections in a room.
func (r *Registry) ConnCount(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		return 0
	}
	return len(state.conns)
}

func (s *roomState) online() []string {
	users := make([]string, 0, len(s.presence))
	for u := range s.presence {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
