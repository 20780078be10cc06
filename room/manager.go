// room/manager.go
package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/partydeck/cards"
	"github.com/wfunc/partydeck/logger"
	"github.com/wfunc/partydeck/timer"
)

// Manager is the session directory: it maps room ids to coordinators,
// validates join tokens, runs public matchmaking and tears down rooms that
// stay empty past the grace window.
type Manager struct {
	mu         sync.RWMutex
	rooms      map[int]*Room
	nextRoomID int
	catalog    *cards.Catalog
	opts       Options
	grace      time.Duration
	timers     *timer.Manager

	// OnCountChange, when set, is called with the live room count after a
	// room is removed. Teardown timers remove rooms outside any request
	// handler, so gauges need this push to stay current.
	OnCountChange func(live int)
}

func NewManager(catalog *cards.Catalog, opts Options, grace time.Duration) *Manager {
	if grace <= 0 {
		grace = time.Minute
	}
	return &Manager{
		rooms:   make(map[int]*Room),
		catalog: catalog,
		opts:    opts,
		grace:   grace,
		timers:  timer.NewManager(),
	}
}

// CreateRoom builds a room with fresh join and admin tokens and reserves the
// creator as its admin (and, once the game starts, its first czar).
func (m *Manager) CreateRoom(creatorID int64, b Broadcaster) (*Room, error) {
	m.mu.Lock()
	m.nextRoomID++
	id := m.nextRoomID
	r := NewRoom(id, uuid.NewString(), uuid.NewString(), m.catalog, m.opts, b)
	m.rooms[id] = r
	m.mu.Unlock()

	if err := r.Reserve(creatorID, true); err != nil {
		m.RemoveRoom(id)
		return nil, err
	}
	logger.Log.Infof("room %d created by user %d", id, creatorID)
	return r, nil
}

func (m *Manager) GetRoom(id int) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// JoinRoom validates the join token and reserves the user. The admin token,
// if supplied, must match exactly; a wrong admin token is rejected rather
// than downgraded.
func (m *Manager) JoinRoom(roomID int, token, adminToken string, userID int64) (*Room, bool, error) {
	r, ok := m.GetRoom(roomID)
	if !ok {
		return nil, false, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	if token != r.JoinToken {
		return nil, false, ErrInvalidToken
	}
	admin := false
	if adminToken != "" {
		if adminToken != r.AdminToken {
			return nil, false, ErrInvalidToken
		}
		admin = true
	}
	if err := r.Reserve(userID, admin); err != nil {
		return nil, false, err
	}
	return r, admin, nil
}

// RejoinRoom rebinds a reconnecting user to a room they already occupy.
func (m *Manager) RejoinRoom(roomID int, userID int64) (*Room, error) {
	r, ok := m.GetRoom(roomID)
	if !ok {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	if r.Closed() {
		return nil, ErrRoomClosed
	}
	return r, nil
}

// FindOpenRoom picks any open room with capacity in the New or Choosing
// state and reserves the user in it.
func (m *Manager) FindOpenRoom(userID int64) (*Room, error) {
	m.mu.RLock()
	candidates := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		candidates = append(candidates, r)
	}
	m.mu.RUnlock()

	for _, r := range candidates {
		if !r.Open() {
			continue
		}
		if err := r.Reserve(userID, false); err != nil {
			continue
		}
		return r, nil
	}
	return nil, ErrNoneAvailable
}

// HandleDisconnect marks the user inactive in their room and, when the room
// empties out, schedules teardown after the grace window. A reconnect
// during the window keeps the room alive: the close re-checks occupancy.
func (m *Manager) HandleDisconnect(roomID int, userID int64) {
	r, ok := m.GetRoom(roomID)
	if !ok {
		return
	}
	if active := r.Disconnect(userID); active > 0 {
		return
	}
	m.timers.After(m.grace, func() {
		if r.Close() {
			logger.Log.Infof("room %d torn down after grace period", roomID)
			m.RemoveRoom(roomID)
		}
	})
}

func (m *Manager) RemoveRoom(id int) {
	m.mu.Lock()
	delete(m.rooms, id)
	live := len(m.rooms)
	m.mu.Unlock()
	if m.OnCountChange != nil {
		m.OnCountChange(live)
	}
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Rooms returns a snapshot of the live rooms.
func (m *Manager) Rooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// Shutdown stops the teardown timers.
func (m *Manager) Shutdown() {
	m.timers.Stop()
}
