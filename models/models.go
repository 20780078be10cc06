// models/models.go
package models

import (
	"github.com/wfunc/partydeck/cards"
)

// UserView 用户视图（发送给客户端）
type UserView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Score int    `json:"score"`
	State int    `json:"state"`
	Admin bool   `json:"admin"`
}

// MessageView 聊天消息视图
type MessageView struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"userId"`
	Content     string  `json:"content"`
	IsSystemMsg bool    `json:"isSystemMsg"`
	Likes       []int64 `json:"likes"`
}

// RoomView 房间视图
type RoomView struct {
	ID               int                   `json:"id"`
	Token            string                `json:"token"`
	State            int                   `json:"state"`
	Edition          string                `json:"edition,omitempty"`
	RotateCzar       bool                  `json:"rotateCzar"`
	Open             bool                  `json:"open"`
	CurPrompt        *cards.Prompt         `json:"curPrompt,omitempty"`
	SelectedResponse *int                  `json:"selectedResponse,omitempty"`
	FlaredUser       int64                 `json:"flaredUser,omitempty"`
	Messages         map[int64]MessageView `json:"messages"`
}

// RoomStateView 加入房间时的完整状态快照
type RoomStateView struct {
	Room           RoomView                 `json:"room"`
	Users          map[int64]UserView       `json:"users"`
	IconChoices    []string                 `json:"iconChoices"`
	ResponseGroups map[int][]*cards.Answer  `json:"responseGroups,omitempty"`
	WinningCards   []cards.Answer           `json:"winningCards,omitempty"`
	Hand           []cards.Answer           `json:"hand,omitempty"`
}
