package network

// Message ids. 1-99 connection control, 100-199 room lifecycle actions,
// 200-249 game actions, 250-299 chat actions, 300+ server events.
const (
	MsgTypeHeartbeat = 1
	MsgTypeInit      = 2

	MsgTypeCreateRoom   = 101
	MsgTypeJoinRoom     = 102
	MsgTypeJoinOpenRoom = 103
	MsgTypeEnterRoom    = 104
	MsgTypeLeaveRoom    = 105
	MsgTypeRoomSettings = 106
	MsgTypeGetIcons     = 107
	MsgTypeSetIcon      = 108
	MsgTypeApplyFlair   = 109

	MsgTypeSubmitCards    = 201
	MsgTypeStartReading   = 202
	MsgTypeSkipPrompt     = 203
	MsgTypeRevealResponse = 204
	MsgTypeSelectGroup    = 205
	MsgTypeSelectWinner   = 206
	MsgTypeNextRound      = 207
	MsgTypeRecycleHand    = 208

	MsgTypeChatMessage   = 251
	MsgTypeLikeMessage   = 252
	MsgTypeUnlikeMessage = 253

	MsgTypeUserJoined      = 301
	MsgTypeUserLeft        = 302
	MsgTypeUserState       = 303
	MsgTypeIconTaken       = 304
	MsgTypeSettingsChanged = 305
	MsgTypeAnswersReady    = 306
	MsgTypeAnswersNotReady = 307
	MsgTypePromptSkipped   = 308
	MsgTypeReadingStarted  = 309
	MsgTypeCardRevealed    = 310
	MsgTypeGroupSelected   = 311
	MsgTypeWinnerSelected  = 312
	MsgTypeRoundStarted    = 313
	MsgTypeHandDealt       = 314
	MsgTypeFlairApplied    = 315
)
