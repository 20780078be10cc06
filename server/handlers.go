// server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wfunc/partydeck/logger"
	"github.com/wfunc/partydeck/models"
	"github.com/wfunc/partydeck/network"
	"github.com/wfunc/partydeck/room"
	"github.com/wfunc/partydeck/session"
)

// 请求体
type joinRoomRequest struct {
	RoomID     int    `json:"roomId"`
	Token      string `json:"token"`
	AdminToken string `json:"adminToken,omitempty"`
}

type enterRoomRequest struct {
	Name string `json:"name"`
}

type setIconRequest struct {
	Icon string `json:"icon"`
}

type submitCardsRequest struct {
	Cards []int `json:"cards"`
}

type revealRequest struct {
	Group int `json:"group"`
	Num   int `json:"num"`
}

type selectGroupRequest struct {
	Group *int `json:"group"`
}

type selectWinnerRequest struct {
	Group int `json:"group"`
}

type chatRequest struct {
	Content string `json:"content"`
}

type likeRequest struct {
	MsgID int64 `json:"msgId"`
}

type flairRequest struct {
	UserID *int64 `json:"userId"`
}

type createRoomResponse struct {
	RoomID     int    `json:"roomId"`
	Token      string `json:"token"`
	AdminToken string `json:"adminToken"`
}

type iconsResponse struct {
	Icons []string `json:"icons"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// 应答与请求共用消息号,失败时负载为 ErrorResponse
func (s *GameServer) ack(sess *session.Session, msgID uint16, v interface{}) {
	if err := network.SendJSON(sess.Conn, msgID, v); err != nil {
		logger.Log.Warnf("ack failed session=%s msg=%d: %v", sess.GetID(), msgID, err)
	}
}

func (s *GameServer) fail(sess *session.Session, msgID uint16, err error) {
	logger.Log.Infof("action %d rejected for user %d: %v", msgID, sess.UserID, err)
	s.ack(sess, msgID, models.ErrorResponse{Error: err.Error()})
}

// currentRoom resolves the caller's room; every in-room action starts here.
func (s *GameServer) currentRoom(sess *session.Session) (*room.Room, bool) {
	if sess.RoomID == 0 {
		return nil, false
	}
	return s.roomManager.GetRoom(sess.RoomID)
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeJoinOpenRoom:
		s.handleJoinOpenRoom(sess)
	case network.MsgTypeEnterRoom:
		s.handleEnterRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess)
	case network.MsgTypeRoomSettings:
		s.handleRoomSettings(sess, packet)
	case network.MsgTypeGetIcons:
		s.handleGetIcons(sess)
	case network.MsgTypeSetIcon:
		s.handleSetIcon(sess, packet)
	case network.MsgTypeApplyFlair:
		s.handleApplyFlair(sess, packet)
	case network.MsgTypeSubmitCards:
		s.handleSubmitCards(sess, packet)
	case network.MsgTypeStartReading:
		s.handleStartReading(sess)
	case network.MsgTypeSkipPrompt:
		s.handleSkipPrompt(sess)
	case network.MsgTypeRevealResponse:
		s.handleRevealResponse(sess, packet)
	case network.MsgTypeSelectGroup:
		s.handleSelectGroup(sess, packet)
	case network.MsgTypeSelectWinner:
		s.handleSelectWinner(sess, packet)
	case network.MsgTypeNextRound:
		s.handleNextRound(sess)
	case network.MsgTypeRecycleHand:
		s.handleRecycleHand(sess)
	case network.MsgTypeChatMessage:
		s.handleChat(sess, packet)
	case network.MsgTypeLikeMessage:
		s.handleLike(sess, packet)
	case network.MsgTypeUnlikeMessage:
		s.handleUnlike(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session) {
	if sess.RoomID != 0 {
		s.fail(sess, network.MsgTypeCreateRoom, room.ErrConflict)
		return
	}
	r, err := s.roomManager.CreateRoom(sess.UserID, s.broadcaster)
	if err != nil {
		s.fail(sess, network.MsgTypeCreateRoom, err)
		return
	}
	s.sessionManager.SetRoom(sess.UserID, r.ID)
	s.monitor.SetActiveRooms(s.roomManager.Count())

	logger.Log.Infof("user %d created room %d", sess.UserID, r.ID)
	s.ack(sess, network.MsgTypeCreateRoom, createRoomResponse{
		RoomID:     r.ID,
		Token:      r.JoinToken,
		AdminToken: r.AdminToken,
	})
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req joinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeJoinRoom, err)
		return
	}
	r, _, err := s.roomManager.JoinRoom(req.RoomID, req.Token, req.AdminToken, sess.UserID)
	if errors.Is(err, room.ErrConflict) {
		// 房间里还留着这个用户的记录(之前退出过),按重连处理
		s.rejoinRoom(sess, req.RoomID)
		return
	}
	if err != nil {
		s.fail(sess, network.MsgTypeJoinRoom, err)
		return
	}
	s.sessionManager.SetRoom(sess.UserID, r.ID)
	logger.Log.Infof("user %d joined room %d", sess.UserID, r.ID)
	s.ack(sess, network.MsgTypeJoinRoom, r.Snapshot())
}

// rejoinRoom rebinds a user whose registry record survived an earlier leave
// and answers with the personalized snapshot, hand included.
func (s *GameServer) rejoinRoom(sess *session.Session, roomID int) {
	r, err := s.roomManager.RejoinRoom(roomID, sess.UserID)
	if err != nil {
		s.fail(sess, network.MsgTypeJoinRoom, err)
		return
	}
	snap, err := r.Rejoin(sess.UserID)
	if err != nil {
		s.fail(sess, network.MsgTypeJoinRoom, err)
		return
	}
	s.sessionManager.SetRoom(sess.UserID, r.ID)
	logger.Log.Infof("user %d rejoined room %d", sess.UserID, r.ID)
	s.ack(sess, network.MsgTypeJoinRoom, snap)
}

func (s *GameServer) handleJoinOpenRoom(sess *session.Session) {
	r, err := s.roomManager.FindOpenRoom(sess.UserID)
	if err != nil {
		s.fail(sess, network.MsgTypeJoinOpenRoom, err)
		return
	}
	s.sessionManager.SetRoom(sess.UserID, r.ID)
	logger.Log.Infof("user %d matched into room %d", sess.UserID, r.ID)
	s.ack(sess, network.MsgTypeJoinOpenRoom, r.Snapshot())
}

func (s *GameServer) handleEnterRoom(sess *session.Session, packet *network.Packet) {
	var req enterRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeEnterRoom, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeEnterRoom, room.ErrNotFound)
		return
	}
	res, err := r.Enter(sess.UserID, req.Name)
	if err != nil {
		s.fail(sess, network.MsgTypeEnterRoom, err)
		return
	}
	s.ack(sess, network.MsgTypeEnterRoom, res)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	if sess.RoomID == 0 {
		s.fail(sess, network.MsgTypeLeaveRoom, room.ErrNotFound)
		return
	}
	roomID := sess.RoomID
	s.roomManager.HandleDisconnect(roomID, sess.UserID)
	s.sessionManager.SetRoom(sess.UserID, 0)
	s.monitor.SetActiveRooms(s.roomManager.Count())
	logger.Log.Infof("user %d left room %d", sess.UserID, roomID)
	s.ack(sess, network.MsgTypeLeaveRoom, okResponse{OK: true})
}

func (s *GameServer) handleRoomSettings(sess *session.Session, packet *network.Packet) {
	var req room.Settings
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeRoomSettings, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeRoomSettings, room.ErrNotFound)
		return
	}
	if err := r.ApplySettings(sess.UserID, req); err != nil {
		s.fail(sess, network.MsgTypeRoomSettings, err)
		return
	}
	s.ack(sess, network.MsgTypeRoomSettings, okResponse{OK: true})
}

func (s *GameServer) handleGetIcons(sess *session.Session) {
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeGetIcons, room.ErrNotFound)
		return
	}
	s.ack(sess, network.MsgTypeGetIcons, iconsResponse{Icons: r.AvailableIcons()})
}

func (s *GameServer) handleSetIcon(sess *session.Session, packet *network.Packet) {
	var req setIconRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeSetIcon, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeSetIcon, room.ErrNotFound)
		return
	}
	if err := r.ReserveIcon(sess.UserID, req.Icon); err != nil {
		s.fail(sess, network.MsgTypeSetIcon, err)
		return
	}
	s.ack(sess, network.MsgTypeSetIcon, okResponse{OK: true})
}

func (s *GameServer) handleApplyFlair(sess *session.Session, packet *network.Packet) {
	var req flairRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeApplyFlair, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeApplyFlair, room.ErrNotFound)
		return
	}
	if err := r.ApplyFlair(sess.UserID, req.UserID); err != nil {
		s.fail(sess, network.MsgTypeApplyFlair, err)
		return
	}
	s.ack(sess, network.MsgTypeApplyFlair, okResponse{OK: true})
}

func (s *GameServer) handleSubmitCards(sess *session.Session, packet *network.Packet) {
	var req submitCardsRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeSubmitCards, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeSubmitCards, room.ErrNotFound)
		return
	}
	hand, err := r.SubmitAnswers(sess.UserID, req.Cards)
	if err != nil {
		s.fail(sess, network.MsgTypeSubmitCards, err)
		return
	}
	s.ack(sess, network.MsgTypeSubmitCards, models.HandDealtEvent{Cards: hand})
}

func (s *GameServer) handleStartReading(sess *session.Session) {
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeStartReading, room.ErrNotFound)
		return
	}
	groups, err := r.StartReading(sess.UserID)
	if err != nil {
		s.fail(sess, network.MsgTypeStartReading, err)
		return
	}
	s.ack(sess, network.MsgTypeStartReading, models.ReadingStartedEvent{Groups: groups})
}

func (s *GameServer) handleSkipPrompt(sess *session.Session) {
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeSkipPrompt, room.ErrNotFound)
		return
	}
	if err := r.SkipPrompt(sess.UserID); err != nil {
		s.fail(sess, network.MsgTypeSkipPrompt, err)
		return
	}
	s.ack(sess, network.MsgTypeSkipPrompt, okResponse{OK: true})
}

func (s *GameServer) handleRevealResponse(sess *session.Session, packet *network.Packet) {
	var req revealRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeRevealResponse, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeRevealResponse, room.ErrNotFound)
		return
	}
	if err := r.RevealCard(sess.UserID, req.Group, req.Num); err != nil {
		s.fail(sess, network.MsgTypeRevealResponse, err)
		return
	}
	s.ack(sess, network.MsgTypeRevealResponse, okResponse{OK: true})
}

func (s *GameServer) handleSelectGroup(sess *session.Session, packet *network.Packet) {
	var req selectGroupRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeSelectGroup, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeSelectGroup, room.ErrNotFound)
		return
	}
	if err := r.SelectGroup(sess.UserID, req.Group); err != nil {
		s.fail(sess, network.MsgTypeSelectGroup, err)
		return
	}
	s.ack(sess, network.MsgTypeSelectGroup, okResponse{OK: true})
}

func (s *GameServer) handleSelectWinner(sess *session.Session, packet *network.Packet) {
	var req selectWinnerRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeSelectWinner, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeSelectWinner, room.ErrNotFound)
		return
	}
	if err := r.SelectWinner(sess.UserID, req.Group); err != nil {
		s.fail(sess, network.MsgTypeSelectWinner, err)
		return
	}
	s.monitor.IncRoundsFinished()
	s.ack(sess, network.MsgTypeSelectWinner, okResponse{OK: true})
}

func (s *GameServer) handleNextRound(sess *session.Session) {
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeNextRound, room.ErrNotFound)
		return
	}
	if err := r.NextRound(sess.UserID); err != nil {
		s.fail(sess, network.MsgTypeNextRound, err)
		return
	}
	s.ack(sess, network.MsgTypeNextRound, okResponse{OK: true})
}

func (s *GameServer) handleRecycleHand(sess *session.Session) {
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeRecycleHand, room.ErrNotFound)
		return
	}
	hand, _, err := r.RecycleHand(sess.UserID)
	if err != nil {
		s.fail(sess, network.MsgTypeRecycleHand, err)
		return
	}
	s.ack(sess, network.MsgTypeRecycleHand, models.HandDealtEvent{Cards: hand})
}

func (s *GameServer) handleChat(sess *session.Session, packet *network.Packet) {
	var req chatRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeChatMessage, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeChatMessage, room.ErrNotFound)
		return
	}
	msg, err := r.Chat(sess.UserID, req.Content)
	if err != nil {
		s.fail(sess, network.MsgTypeChatMessage, err)
		return
	}
	s.ack(sess, network.MsgTypeChatMessage, models.ChatEvent{Message: *msg})
}

func (s *GameServer) handleLike(sess *session.Session, packet *network.Packet) {
	var req likeRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeLikeMessage, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeLikeMessage, room.ErrNotFound)
		return
	}
	if err := r.LikeMessage(sess.UserID, req.MsgID); err != nil {
		s.fail(sess, network.MsgTypeLikeMessage, err)
		return
	}
	s.ack(sess, network.MsgTypeLikeMessage, okResponse{OK: true})
}

func (s *GameServer) handleUnlike(sess *session.Session, packet *network.Packet) {
	var req likeRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.fail(sess, network.MsgTypeUnlikeMessage, err)
		return
	}
	r, ok := s.currentRoom(sess)
	if !ok {
		s.fail(sess, network.MsgTypeUnlikeMessage, room.ErrNotFound)
		return
	}
	if err := r.UnlikeMessage(sess.UserID, req.MsgID); err != nil {
		s.fail(sess, network.MsgTypeUnlikeMessage, err)
		return
	}
	s.ack(sess, network.MsgTypeUnlikeMessage, okResponse{OK: true})
}
