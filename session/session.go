// session/session.go
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/partydeck/network"
)

var ErrBadToken = errors.New("user token mismatch")

// Session 一条连接的状态
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     int64
	UserToken  string
	RoomID     int
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager owns the sessions and the process-wide user identity space. User
// ids survive their session: a reconnect presents the user token and is
// rebound to the same id.
type Manager struct {
	sessions   map[string]*Session
	byUser     map[int64]*Session
	userTokens map[int64]string
	userRooms  map[int64]int
	nextUserID int64
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		byUser:     make(map[int64]*Session),
		userTokens: make(map[int64]string),
		userRooms:  make(map[int64]int),
	}
}

func (m *Manager) Add(s *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[s.ID] = s
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	delete(m.sessions, sessionID)
	if s.UserID != 0 && m.byUser[s.UserID] == s {
		delete(m.byUser, s.UserID)
	}
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// AllocateUser mints a fresh user identity for a session.
func (m *Manager) AllocateUser(s *Session) (int64, string) {
	id := atomic.AddInt64(&m.nextUserID, 1)
	token := uuid.NewString()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	s.UserID = id
	s.UserToken = token
	m.userTokens[id] = token
	m.byUser[id] = s
	return id, token
}

// RebindUser attaches a new session to an existing user identity after a
// reconnect. The previous session, if still around, is dropped.
func (m *Manager) RebindUser(s *Session, userID int64, token string) (roomID int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	want, ok := m.userTokens[userID]
	if !ok || want != token {
		return 0, ErrBadToken
	}
	if old, ok := m.byUser[userID]; ok && old != s {
		delete(m.sessions, old.ID)
		_ = old.Close()
	}
	s.UserID = userID
	s.UserToken = token
	m.byUser[userID] = s
	return m.userRooms[userID], nil
}

// SetRoom records which room a user occupies (0 clears it). Tracked on the
// user, not the session, so it survives a reconnect.
func (m *Manager) SetRoom(userID int64, roomID int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if roomID == 0 {
		delete(m.userRooms, userID)
	} else {
		m.userRooms[userID] = roomID
	}
	if s, ok := m.byUser[userID]; ok {
		s.RoomID = roomID
	}
}

func (m *Manager) GetByUser(userID int64) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.byUser[userID]
	return s, ok
}

// GetByRoom returns every live session bound to the room.
func (m *Manager) GetByRoom(roomID int) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.RoomID == roomID {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
