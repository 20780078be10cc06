// room/broadcaster.go
package room

// Broadcaster delivers committed events to room participants. Defined here to
// break the import cycle between room and broadcast.
//
// Implementations must preserve per-recipient ordering: two events sent to
// the same user must arrive in send order.
type Broadcaster interface {
	BroadcastToRoom(roomID int, msgID uint16, data []byte) error
	BroadcastToRoomExcept(roomID int, exceptUserID int64, msgID uint16, data []byte) error
	SendToUser(userID int64, msgID uint16, data []byte) error
}
