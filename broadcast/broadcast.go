// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/partydeck/logger"
	"github.com/wfunc/partydeck/session"
)

// RoomBroadcaster fans room events out over live sessions. A user with no
// live session simply misses the event and catches up from the snapshot on
// reconnect, so send failures are logged and swallowed.
type RoomBroadcaster struct {
	sessions *session.Manager
}

func NewRoomBroadcaster(sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{sessions: sessions}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID int, msgID uint16, data []byte) error {
	for _, s := range b.sessions.GetByRoom(roomID) {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("广播失败 room=%d user=%d msg=%d: %v", roomID, s.UserID, msgID, err)
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToRoomExcept(roomID int, exceptUserID int64, msgID uint16, data []byte) error {
	for _, s := range b.sessions.GetByRoom(roomID) {
		if s.UserID == exceptUserID {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("广播失败 room=%d user=%d msg=%d: %v", roomID, s.UserID, msgID, err)
		}
	}
	return nil
}

func (b *RoomBroadcaster) SendToUser(userID int64, msgID uint16, data []byte) error {
	s, ok := b.sessions.GetByUser(userID)
	if !ok {
		return nil
	}
	if err := s.Send(msgID, data); err != nil {
		logger.Log.Warnf("单发失败 user=%d msg=%d: %v", userID, msgID, err)
	}
	return nil
}
