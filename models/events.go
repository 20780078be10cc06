// models/events.go
package models

import (
	"github.com/wfunc/partydeck/cards"
)

// ErrorResponse 动作失败时的统一应答
type ErrorResponse struct {
	Error string `json:"error"`
}

// InitEvent is unicast once per connection.
type InitEvent struct {
	UserID    int64  `json:"userId"`
	UserToken string `json:"userToken"`
}

type UserJoinedEvent struct {
	User    UserView     `json:"user"`
	Message *MessageView `json:"message,omitempty"`
}

type UserLeftEvent struct {
	UserID  int64        `json:"userId"`
	Message *MessageView `json:"message,omitempty"`
}

type UserStateEvent struct {
	UserID int64 `json:"userId"`
	State  int   `json:"state"`
}

type IconTakenEvent struct {
	Icon string `json:"icon"`
}

// SettingsEvent carries the shared room settings. Hand is personalized per
// recipient when the event starts gameplay.
type SettingsEvent struct {
	Edition    string         `json:"edition"`
	RotateCzar bool           `json:"rotateCzar"`
	Open       bool           `json:"open"`
	BlackCard  *cards.Prompt  `json:"blackCard,omitempty"`
	CzarID     int64          `json:"czarId,omitempty"`
	Hand       []cards.Answer `json:"hand,omitempty"`
}

type AnswersReadyEvent struct {
	Count        int `json:"count"`
	MaxResponses int `json:"maxResponses"`
}

type PromptSkippedEvent struct {
	NewPrompt *cards.Prompt `json:"newPrompt"`
	CzarID    int64         `json:"czarId"`
	Message   *MessageView  `json:"message,omitempty"`
}

type ReadingStartedEvent struct {
	Groups int `json:"groups"`
}

type CardRevealedEvent struct {
	Group int          `json:"group"`
	Num   int          `json:"num"`
	Card  cards.Answer `json:"card"`
}

type GroupSelectedEvent struct {
	Group *int `json:"group"`
}

type WinnerSelectedEvent struct {
	WinnerID     int64          `json:"winnerId"`
	NextCzarID   int64          `json:"nextCzarId"`
	WinningCards []cards.Answer `json:"winningCards"`
}

type RoundStartedEvent struct {
	CzarID int64         `json:"czar"`
	Card   *cards.Prompt `json:"card"`
}

type HandDealtEvent struct {
	Cards []cards.Answer `json:"cards"`
}

type FlairEvent struct {
	UserID int64 `json:"userId"`
}

type ChatEvent struct {
	Message MessageView `json:"message"`
}

type LikeEvent struct {
	MsgID  int64 `json:"msgId"`
	UserID int64 `json:"userId"`
}
