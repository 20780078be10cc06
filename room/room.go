// room/room.go
package room

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/partydeck/cards"
	"github.com/wfunc/partydeck/logger"
	"github.com/wfunc/partydeck/models"
	"github.com/wfunc/partydeck/network"
)

// Options 房间行为配置
type Options struct {
	HandSize       int
	MinSubmissions int
	Capacity       int
	Icons          []string
	Seed           int64 // 0 means time-based
}

func (o Options) withDefaults() Options {
	if o.HandSize == 0 {
		o.HandSize = 7
	}
	if o.MinSubmissions == 0 {
		o.MinSubmissions = 2
	}
	if o.Capacity == 0 {
		o.Capacity = 12
	}
	if len(o.Icons) == 0 {
		o.Icons = DefaultIcons
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	return o
}

// DefaultIcons is the icon pool offered to joining users.
var DefaultIcons = []string{
	"cat", "dog", "crow", "fish", "frog", "horse", "hippo", "spider",
	"dragon", "otter", "kiwi-bird", "dove", "ghost", "robot", "rocket",
	"snowman", "carrot", "lemon", "pepper-hot", "ice-cream",
}

// Message is one chat log entry. The log is append-only.
type Message struct {
	ID        int64
	UserID    int64
	Content   string
	SystemMsg bool
	Likes     []int64
}

func (m *Message) view() models.MessageView {
	likes := m.Likes
	if likes == nil {
		likes = []int64{}
	}
	return models.MessageView{
		ID:          m.ID,
		UserID:      m.UserID,
		Content:     m.Content,
		IsSystemMsg: m.SystemMsg,
		Likes:       append([]int64(nil), likes...),
	}
}

// Room is the coordinator for one game session. It owns the user registry,
// the round state machine, the deck and the chat log, and serializes every
// state-mutating operation behind one mutex: the registry and round of a
// room are read-modify-written as one atomic unit per action. Events are
// emitted under the lock, so broadcasts leave in commit order.
type Room struct {
	ID         int
	JoinToken  string
	AdminToken string

	mu         sync.Mutex
	closed     bool
	registry   *Registry
	round      *Round
	deck       *cards.Deck
	catalog    *cards.Catalog
	rng        *rand.Rand
	opts       Options
	edition    string
	expansions []string
	rotateCzar bool
	open       bool
	flaredUser int64
	messages   map[int64]*Message
	nextMsgID  int64
	createdAt  time.Time

	broadcaster Broadcaster
}

// NewRoom builds an empty room in the New state. The creator is reserved
// separately by the directory.
func NewRoom(id int, joinToken, adminToken string, catalog *cards.Catalog, opts Options, b Broadcaster) *Room {
	opts = opts.withDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))
	return &Room{
		ID:          id,
		JoinToken:   joinToken,
		AdminToken:  adminToken,
		registry:    NewRegistry(),
		round:       NewRound(rng),
		catalog:     catalog,
		rng:         rng,
		opts:        opts,
		messages:    make(map[int64]*Message),
		createdAt:   time.Now(),
		broadcaster: b,
	}
}

// --- event helpers, called with r.mu held ---

func (r *Room) broadcast(msgID uint16, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("room %d: marshal event %d: %v", r.ID, msgID, err)
		return
	}
	if err := r.broadcaster.BroadcastToRoom(r.ID, msgID, data); err != nil {
		logger.Log.Warnf("room %d: broadcast %d: %v", r.ID, msgID, err)
	}
}

func (r *Room) broadcastExcept(userID int64, msgID uint16, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("room %d: marshal event %d: %v", r.ID, msgID, err)
		return
	}
	if err := r.broadcaster.BroadcastToRoomExcept(r.ID, userID, msgID, data); err != nil {
		logger.Log.Warnf("room %d: broadcast %d: %v", r.ID, msgID, err)
	}
}

func (r *Room) sendTo(userID int64, msgID uint16, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("room %d: marshal event %d: %v", r.ID, msgID, err)
		return
	}
	if err := r.broadcaster.SendToUser(userID, msgID, data); err != nil {
		logger.Log.Warnf("room %d: unicast %d to %d: %v", r.ID, msgID, userID, err)
	}
}

// postSystem appends a system chat message and returns its view. The caller
// decides which event carries it.
func (r *Room) postSystem(userID int64, content string) *models.MessageView {
	r.nextMsgID++
	m := &Message{ID: r.nextMsgID, UserID: userID, Content: content, SystemMsg: true}
	r.messages[m.ID] = m
	v := m.view()
	return &v
}

// --- membership ---

// Reserve admits a user id into the registry (phase one of the two-phase
// join). Token validation already happened in the directory.
func (r *Room) Reserve(userID int64, admin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if r.registry.ActiveCount() >= r.opts.Capacity {
		return ErrRoomFull
	}
	_, err := r.registry.Reserve(userID, admin)
	return err
}

// Rejoin rebinds a reconnecting user to their existing record.
func (r *Room) Rejoin(userID int64) (*models.RoomStateView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return nil, err
	}
	u.Role = RoleIdle
	if u.Name != "" {
		if r.round.State() == StateChoosing && !r.round.HasSubmitted(userID) {
			u.Role = RoleChoosing
			r.dealUpToLocked(u, r.opts.HandSize+r.round.Prompt().Draw)
		}
		msg := r.postSystem(userID, u.Name+" reconnected")
		r.broadcastExcept(userID, network.MsgTypeUserJoined, models.UserJoinedEvent{User: u.View(), Message: msg})
	}
	snap := r.snapshotLocked()
	snap.Hand = u.Hand
	return &snap, nil
}

// EnterResult 进入房间应答
type EnterResult struct {
	State   int                 `json:"state"`
	Hand    []cards.Answer      `json:"hand"`
	Message *models.MessageView `json:"message,omitempty"`
}

// Enter completes the two-phase join: the user has reserved an identity and
// an icon, and now sets a display name. Mid-game joiners are dealt a hand
// and start choosing immediately.
func (r *Room) Enter(userID int64, name string) (*EnterResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return nil, err
	}
	if u.Name != "" {
		return nil, fmt.Errorf("already entered: %w", ErrIllegalTransition)
	}
	if u.Icon == "" {
		return nil, fmt.Errorf("icon not set: %w", ErrIllegalTransition)
	}
	if name == "" {
		return nil, fmt.Errorf("empty name: %w", ErrInvalidSubmission)
	}
	if err := r.registry.SetName(userID, name); err != nil {
		return nil, err
	}

	res := &EnterResult{}
	if r.round.State() != StateNew {
		target := r.opts.HandSize
		if r.round.State() == StateChoosing {
			u.Role = RoleChoosing
			target += r.round.Prompt().Draw
		}
		u.Hand = r.deck.DealAnswers(target)
		res.Hand = u.Hand
	}
	res.State = int(u.Role)
	res.Message = r.postSystem(userID, name+" joined the room")

	r.broadcastExcept(userID, network.MsgTypeUserJoined, models.UserJoinedEvent{User: u.View(), Message: res.Message})
	return res, nil
}

// ReserveIcon gives the caller exclusive hold of an icon.
func (r *Room) ReserveIcon(userID int64, icon string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	known := false
	for _, i := range r.opts.Icons {
		if i == icon {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("icon %q: %w", icon, ErrNotFound)
	}
	if err := r.registry.ReserveIcon(userID, icon); err != nil {
		return err
	}
	r.broadcastExcept(userID, network.MsgTypeIconTaken, models.IconTakenEvent{Icon: icon})
	return nil
}

// AvailableIcons returns the icons not held by active users.
func (r *Room) AvailableIcons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.AvailableIcons(r.opts.Icons)
}

// --- settings ---

// Settings 管理员设置
type Settings struct {
	Edition    string   `json:"edition"`
	RotateCzar bool     `json:"rotateCzar"`
	Open       bool     `json:"open"`
	Packs      []string `json:"packs"`
}

// ApplySettings configures the room. In the New state it starts gameplay:
// deck built, first prompt drawn, the admin becomes czar and everyone who
// has entered receives a hand. After gameplay started only the open flag,
// rotation policy and expansion set may change; the edition is fixed.
func (r *Room) ApplySettings(userID int64, s Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return err
	}
	if !u.Admin {
		return fmt.Errorf("settings require admin: %w", ErrIllegalTransition)
	}

	if r.round.State() != StateNew {
		if s.Edition != r.edition {
			return fmt.Errorf("edition is fixed after start: %w", ErrIllegalTransition)
		}
		r.rotateCzar = s.RotateCzar
		r.open = s.Open
		r.expansions = append([]string(nil), s.Packs...)
		if err := r.rebuildDeck(); err != nil {
			return err
		}
		r.broadcast(network.MsgTypeSettingsChanged, models.SettingsEvent{
			Edition: r.edition, RotateCzar: r.rotateCzar, Open: r.open,
		})
		return nil
	}

	if !r.catalog.HasEdition(s.Edition) {
		return fmt.Errorf("edition %q: %w", s.Edition, ErrNotFound)
	}
	prompts, answers, err := r.catalog.Select(s.Edition, s.Packs)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	r.edition = s.Edition
	r.expansions = append([]string(nil), s.Packs...)
	r.rotateCzar = s.RotateCzar
	r.open = s.Open
	r.deck = cards.NewDeck(prompts, answers, r.rng)

	prompt, err := r.deck.DrawPrompt()
	if err != nil {
		return err
	}
	if err := r.round.StartChoosing(prompt); err != nil {
		return err
	}

	u.Role = RoleCzar
	for _, other := range r.registry.Active() {
		if other.Name == "" {
			continue
		}
		target := r.opts.HandSize
		if other.ID != userID {
			other.Role = RoleChoosing
			target += prompt.Draw
		}
		other.Hand = r.deck.DealAnswers(target)
		r.sendTo(other.ID, network.MsgTypeRoomSettings, models.SettingsEvent{
			Edition:    r.edition,
			RotateCzar: r.rotateCzar,
			Open:       r.open,
			BlackCard:  r.round.Prompt(),
			CzarID:     userID,
			Hand:       other.Hand,
		})
	}
	return nil
}

// rebuildDeck re-selects the card pools after an expansion change, keeping
// dealt hands as they are. Cards currently held or submitted stay out of the
// new draw pile so they cannot show up twice in the same room.
func (r *Room) rebuildDeck() error {
	prompts, answers, err := r.catalog.Select(r.edition, r.expansions)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	out := make(map[int]bool)
	for _, u := range r.registry.All() {
		for _, c := range u.Hand {
			out[c.ID] = true
		}
	}
	for _, g := range r.round.Groups() {
		for _, c := range g.Cards {
			out[c.ID] = true
		}
	}
	if len(out) > 0 {
		kept := answers[:0]
		for _, c := range answers {
			if !out[c.ID] {
				kept = append(kept, c)
			}
		}
		answers = kept
	}
	r.deck = cards.NewDeck(prompts, answers, r.rng)
	return nil
}

// --- gameplay ---

// SubmitAnswers stores the caller's answer group for the current prompt and
// replenishes their hand. Atomic: every check runs before the first mutation.
func (r *Room) SubmitAnswers(userID int64, cardIDs []int) ([]cards.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return nil, err
	}
	if u.Role != RoleChoosing {
		return nil, fmt.Errorf("submit with role %d: %w", u.Role, ErrIllegalTransition)
	}
	if r.round.State() != StateChoosing {
		return nil, fmt.Errorf("submit in %s: %w", r.round.State(), ErrIllegalTransition)
	}
	if r.round.HasSubmitted(userID) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrAlreadySubmitted)
	}
	if len(cardIDs) != r.round.Prompt().Pick {
		return nil, fmt.Errorf("submitted %d cards, prompt picks %d: %w",
			len(cardIDs), r.round.Prompt().Pick, ErrInvalidSubmission)
	}
	picked, ok := u.RemoveFromHand(cardIDs)
	if !ok {
		return nil, fmt.Errorf("card not in hand: %w", ErrInvalidSubmission)
	}
	if err := r.round.Submit(userID, picked); err != nil {
		// Hand was already validated; put the cards back to keep the
		// no-partial-mutation contract.
		u.Hand = append(u.Hand, picked...)
		return nil, err
	}

	u.Role = RoleIdle
	newCards := r.deck.DealAnswers(r.opts.HandSize - len(u.Hand))
	u.Hand = append(u.Hand, newCards...)

	r.broadcastExcept(userID, network.MsgTypeUserState, models.UserStateEvent{UserID: userID, State: int(RoleIdle)})
	r.notifyReadinessLocked()
	return newCards, nil
}

// notifyReadinessLocked informs the czar of the current submission count and
// auto-skips the prompt when everyone has submitted but the count is still
// below the reveal threshold.
func (r *Room) notifyReadinessLocked() {
	czar, ok := r.registry.Czar()
	if !ok || r.round.State() != StateChoosing {
		return
	}
	count := r.round.SubmissionCount()
	max := r.registry.ActiveCount() - 1

	stillChoosing := 0
	for _, u := range r.registry.Active() {
		if u.Role == RoleChoosing {
			stillChoosing++
		}
	}
	if stillChoosing == 0 && count < r.opts.MinSubmissions {
		r.skipPromptLocked(czar, czar.Name+" skipped the prompt: not enough answers")
		return
	}

	if count >= r.opts.MinSubmissions {
		r.sendTo(czar.ID, network.MsgTypeAnswersReady, models.AnswersReadyEvent{Count: count, MaxResponses: max})
	} else {
		r.sendTo(czar.ID, network.MsgTypeAnswersNotReady, struct{}{})
	}
}

// skipPromptLocked discards the current prompt and all submissions, deals a
// fresh prompt and restarts the answering phase with the given czar. Never
// surfaces as a user-facing error.
func (r *Room) skipPromptLocked(czar *User, note string) {
	r.deck.DiscardPrompt(*r.round.Prompt())
	for _, g := range r.round.Groups() {
		r.deck.DiscardAnswers(g.Cards)
	}

	prompt, err := r.deck.DrawPrompt()
	if err != nil {
		logger.Log.Errorf("room %d: skip prompt: %v", r.ID, err)
		return
	}
	if err := r.round.StartChoosing(prompt); err != nil {
		logger.Log.Errorf("room %d: skip prompt: %v", r.ID, err)
		return
	}

	czar.Role = RoleCzar
	for _, u := range r.registry.Active() {
		if u.ID == czar.ID || u.Name == "" {
			continue
		}
		u.Role = RoleChoosing
		r.dealUpToLocked(u, r.opts.HandSize+prompt.Draw)
	}

	msg := r.postSystem(czar.ID, note)
	r.broadcast(network.MsgTypePromptSkipped, models.PromptSkippedEvent{
		NewPrompt: r.round.Prompt(), CzarID: czar.ID, Message: msg,
	})
}

// dealUpToLocked tops the hand up to target and unicasts the new cards.
func (r *Room) dealUpToLocked(u *User, target int) {
	if len(u.Hand) >= target {
		return
	}
	dealt := r.deck.DealAnswers(target - len(u.Hand))
	if len(dealt) == 0 {
		return
	}
	u.Hand = append(u.Hand, dealt...)
	r.sendTo(u.ID, network.MsgTypeHandDealt, models.HandDealtEvent{Cards: dealt})
}

// StartReading moves the room into the reveal phase. Czar-only; requires the
// submission count threshold. Stragglers forfeit the round.
func (r *Room) StartReading(userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return 0, err
	}
	if u.Role != RoleCzar {
		return 0, fmt.Errorf("start reading requires czar: %w", ErrIllegalTransition)
	}
	if r.round.SubmissionCount() < r.opts.MinSubmissions {
		return 0, fmt.Errorf("%d submissions, need %d: %w",
			r.round.SubmissionCount(), r.opts.MinSubmissions, ErrIllegalTransition)
	}
	if err := r.round.BeginReveal(); err != nil {
		return 0, err
	}

	for _, other := range r.registry.Active() {
		if other.Role == RoleChoosing {
			other.Role = RoleIdle
			r.broadcast(network.MsgTypeUserState, models.UserStateEvent{UserID: other.ID, State: int(RoleIdle)})
		}
	}

	groups := r.round.SubmissionCount()
	r.broadcastExcept(userID, network.MsgTypeReadingStarted, models.ReadingStartedEvent{Groups: groups})
	return groups, nil
}

// SkipPrompt discards the current prompt on the czar's request.
func (r *Room) SkipPrompt(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return err
	}
	if u.Role != RoleCzar {
		return fmt.Errorf("skip requires czar: %w", ErrIllegalTransition)
	}
	if r.round.State() != StateChoosing {
		return fmt.Errorf("skip in %s: %w", r.round.State(), ErrIllegalTransition)
	}
	r.skipPromptLocked(u, u.Name+" skipped the prompt")
	return nil
}

// RevealCard makes one submitted card visible to the room. Owner identity
// stays hidden. Revealing a card twice is an observable no-op.
func (r *Room) RevealCard(userID int64, group, pos int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return err
	}
	if u.Role != RoleCzar {
		return fmt.Errorf("reveal requires czar: %w", ErrIllegalTransition)
	}
	card, already, err := r.round.Reveal(group, pos)
	if err != nil {
		return err
	}
	if !already {
		r.broadcast(network.MsgTypeCardRevealed, models.CardRevealedEvent{Group: group, Num: pos, Card: card})
	}
	return nil
}

// SelectGroup highlights a response group, nil clears the highlight.
func (r *Room) SelectGroup(userID int64, group *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return err
	}
	if u.Role != RoleCzar {
		return fmt.Errorf("select requires czar: %w", ErrIllegalTransition)
	}
	g := -1
	if group != nil {
		g = *group
	}
	if err := r.round.Select(g); err != nil {
		return err
	}
	r.broadcastExcept(userID, network.MsgTypeGroupSelected, models.GroupSelectedEvent{Group: group})
	return nil
}

// SelectWinner commits the highlighted group as the round winner: the owner
// is revealed, scores one point and roles rotate per the room policy.
func (r *Room) SelectWinner(userID int64, group int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return err
	}
	if u.Role != RoleCzar {
		return fmt.Errorf("select winner requires czar: %w", ErrIllegalTransition)
	}
	g, err := r.round.PickWinner(group)
	if err != nil {
		return err
	}

	winner, err := r.registry.Get(g.Owner)
	if err != nil {
		// Submissions only come from registered users.
		logger.Log.Errorf("room %d: winner %d missing from registry", r.ID, g.Owner)
		return err
	}
	_ = r.registry.AddScore(winner.ID, 1)

	next := r.nextCzarLocked(u, winner)
	for _, other := range r.registry.Active() {
		switch other.ID {
		case winner.ID:
			if next.ID == winner.ID {
				other.Role = RoleWinnerAndNextCzar
			} else {
				other.Role = RoleWinner
			}
		case next.ID:
			other.Role = RoleNextCzar
		default:
			other.Role = RoleIdle
		}
	}

	for _, grp := range r.round.Groups() {
		r.deck.DiscardAnswers(grp.Cards)
	}
	r.deck.DiscardPrompt(*r.round.Prompt())

	r.broadcast(network.MsgTypeWinnerSelected, models.WinnerSelectedEvent{
		WinnerID:     winner.ID,
		NextCzarID:   next.ID,
		WinningCards: g.Cards,
	})
	msg := r.postSystem(winner.ID, winner.Name+" won the round")
	r.broadcast(network.MsgTypeChatMessage, models.ChatEvent{Message: *msg})
	return nil
}

// nextCzarLocked applies the rotation policy. With rotation off the winner
// judges the next round. With rotation on the next czar is the next active
// user in join order after the outgoing czar, skipping the winner unless no
// other candidate remains.
func (r *Room) nextCzarLocked(czar, winner *User) *User {
	if !r.rotateCzar {
		return winner
	}
	next, ok := r.registry.NextAfter(czar.ID, func(u *User) bool {
		return u.ID == winner.ID || u.ID == czar.ID
	})
	if !ok {
		next, ok = r.registry.NextAfter(czar.ID, func(u *User) bool {
			return u.ID == czar.ID
		})
	}
	if !ok {
		return winner
	}
	return next
}

// NextRound starts the following round. Only the designated next czar may
// trigger it.
func (r *Room) NextRound(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return err
	}
	if !u.Role.NextCzar() {
		return fmt.Errorf("next round requires next czar: %w", ErrIllegalTransition)
	}
	if r.round.State() != StateViewingWinner {
		return fmt.Errorf("next round in %s: %w", r.round.State(), ErrIllegalTransition)
	}

	prompt, err := r.deck.DrawPrompt()
	if err != nil {
		return err
	}
	if err := r.round.StartChoosing(prompt); err != nil {
		return err
	}

	u.Role = RoleCzar
	for _, other := range r.registry.Active() {
		if other.ID == userID || other.Name == "" {
			continue
		}
		other.Role = RoleChoosing
		r.dealUpToLocked(other, r.opts.HandSize+prompt.Draw)
	}

	r.broadcast(network.MsgTypeRoundStarted, models.RoundStartedEvent{CzarID: userID, Card: r.round.Prompt()})
	return nil
}

// RecycleHand replaces the caller's entire hand.
func (r *Room) RecycleHand(userID int64) ([]cards.Answer, *models.MessageView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return nil, nil, err
	}
	if r.round.State() == StateNew {
		return nil, nil, fmt.Errorf("recycle before setup: %w", ErrIllegalTransition)
	}
	if u.Name == "" {
		return nil, nil, fmt.Errorf("not entered: %w", ErrIllegalTransition)
	}

	target := r.opts.HandSize
	if u.Role == RoleChoosing {
		target += r.round.Prompt().Draw
	}
	r.deck.DiscardAnswers(u.Hand)
	u.Hand = r.deck.DealAnswers(target)

	msg := r.postSystem(userID, u.Name+" recycled their hand")
	r.broadcastExcept(userID, network.MsgTypeChatMessage, models.ChatEvent{Message: *msg})
	return u.Hand, msg, nil
}

// --- chat ---

// Chat appends a user message to the room log.
func (r *Room) Chat(userID int64, content string) (*models.MessageView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return nil, err
	}
	if u.Name == "" {
		return nil, fmt.Errorf("not entered: %w", ErrIllegalTransition)
	}
	if content == "" {
		return nil, fmt.Errorf("empty message: %w", ErrInvalidSubmission)
	}

	r.nextMsgID++
	m := &Message{ID: r.nextMsgID, UserID: userID, Content: content}
	r.messages[m.ID] = m
	v := m.view()

	r.broadcastExcept(userID, network.MsgTypeChatMessage, models.ChatEvent{Message: v})
	return &v, nil
}

// LikeMessage records a like. Liking twice is a Conflict.
func (r *Room) LikeMessage(userID, msgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if _, err := r.registry.Get(userID); err != nil {
		return err
	}
	m, ok := r.messages[msgID]
	if !ok {
		return fmt.Errorf("message %d: %w", msgID, ErrNotFound)
	}
	for _, id := range m.Likes {
		if id == userID {
			return fmt.Errorf("already liked: %w", ErrConflict)
		}
	}
	m.Likes = append(m.Likes, userID)
	r.broadcastExcept(userID, network.MsgTypeLikeMessage, models.LikeEvent{MsgID: msgID, UserID: userID})
	return nil
}

// UnlikeMessage removes a like. Removing an absent like is NotFound.
func (r *Room) UnlikeMessage(userID, msgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if _, err := r.registry.Get(userID); err != nil {
		return err
	}
	m, ok := r.messages[msgID]
	if !ok {
		return fmt.Errorf("message %d: %w", msgID, ErrNotFound)
	}
	for i, id := range m.Likes {
		if id == userID {
			m.Likes = append(m.Likes[:i], m.Likes[i+1:]...)
			r.broadcastExcept(userID, network.MsgTypeUnlikeMessage, models.LikeEvent{MsgID: msgID, UserID: userID})
			return nil
		}
	}
	return fmt.Errorf("like not found: %w", ErrNotFound)
}

// ApplyFlair highlights one user in the room, admin only. A nil target
// clears the flair.
func (r *Room) ApplyFlair(userID int64, target *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	u, err := r.registry.Get(userID)
	if err != nil {
		return err
	}
	if !u.Admin {
		return fmt.Errorf("flair requires admin: %w", ErrIllegalTransition)
	}
	var id int64
	if target != nil {
		if _, err := r.registry.Get(*target); err != nil {
			return err
		}
		id = *target
	}
	r.flaredUser = id
	r.broadcast(network.MsgTypeFlairApplied, models.FlairEvent{UserID: id})
	return nil
}

// --- disconnect handling ---

// Disconnect marks the user inactive and self-heals any degenerate state
// that leaves: a czar gone mid-round, a next czar gone before the next
// round, or a round that can no longer reach the reveal threshold. Returns
// the remaining active user count so the directory can schedule teardown.
func (r *Room) Disconnect(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	u, err := r.registry.Get(userID)
	if err != nil || u.Role == RoleInactive {
		return r.registry.ActiveCount()
	}

	wasCzar := u.Role == RoleCzar
	wasNextCzar := u.Role.NextCzar()
	u.Role = RoleInactive

	if u.Name != "" {
		msg := r.postSystem(userID, u.Name+" left the room")
		r.broadcast(network.MsgTypeUserLeft, models.UserLeftEvent{UserID: userID, Message: msg})
	}

	active := r.registry.ActiveCount()
	if active == 0 {
		return 0
	}

	switch r.round.State() {
	case StateChoosing:
		if wasCzar {
			r.promoteCzarLocked(userID)
		} else {
			r.notifyReadinessLocked()
		}
	case StateRevealing:
		if wasCzar {
			r.promoteCzarLocked(userID)
		}
	case StateViewingWinner:
		if wasNextCzar {
			r.reassignNextCzarLocked(userID)
		}
	}
	return r.registry.ActiveCount()
}

// promoteCzarLocked hands the czar seat to the next active user in join
// order and skips the round, so the room never stalls on a missing judge.
func (r *Room) promoteCzarLocked(goneID int64) {
	next, ok := r.registry.NextAfter(goneID, func(u *User) bool { return u.Name == "" })
	if !ok {
		return
	}
	r.skipPromptLocked(next, next.Name+" is the new card czar")
}

// reassignNextCzarLocked picks a replacement next czar during ViewingWinner.
func (r *Room) reassignNextCzarLocked(goneID int64) {
	winnerID := r.round.Winner()
	next, ok := r.registry.NextAfter(goneID, func(u *User) bool {
		return u.Name == "" || u.ID == winnerID
	})
	if !ok {
		next, ok = r.registry.NextAfter(goneID, func(u *User) bool { return u.Name == "" })
	}
	if !ok {
		return
	}
	if next.ID == winnerID {
		next.Role = RoleWinnerAndNextCzar
	} else {
		next.Role = RoleNextCzar
	}
	r.broadcast(network.MsgTypeUserState, models.UserStateEvent{UserID: next.ID, State: int(next.Role)})
}

// --- snapshots & accessors ---

func (r *Room) snapshotLocked() models.RoomStateView {
	msgs := make(map[int64]models.MessageView, len(r.messages))
	for id, m := range r.messages {
		msgs[id] = m.view()
	}
	var selected *int
	if s := r.round.Selected(); s != -1 {
		selected = &s
	}
	view := models.RoomStateView{
		Room: models.RoomView{
			ID:               r.ID,
			Token:            r.JoinToken,
			State:            int(r.round.State()),
			Edition:          r.edition,
			RotateCzar:       r.rotateCzar,
			Open:             r.open,
			CurPrompt:        r.round.Prompt(),
			SelectedResponse: selected,
			FlaredUser:       r.flaredUser,
			Messages:         msgs,
		},
		Users:       r.registry.Views(),
		IconChoices: r.registry.AvailableIcons(r.opts.Icons),
	}
	switch r.round.State() {
	case StateRevealing:
		view.ResponseGroups = r.round.RevealedViews()
	case StateViewingWinner:
		view.WinningCards = r.round.WinningCards()
	}
	return view
}

// Snapshot returns the full client-visible room state. Unrevealed cards and
// submission ownership are withheld.
func (r *Room) Snapshot() models.RoomStateView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// State returns the current round state.
func (r *Room) State() RoundState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round.State()
}

// ActiveUsers returns the number of non-inactive users.
func (r *Room) ActiveUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.ActiveCount()
}

// Open reports whether the room accepts public matchmaking right now.
func (r *Room) Open() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.open {
		return false
	}
	if r.round.State() != StateNew && r.round.State() != StateChoosing {
		return false
	}
	return r.registry.ActiveCount() < r.opts.Capacity
}

// Close marks the room closed; every later operation fails with RoomClosed.
// Returns false if an occupant came back before the teardown fired.
func (r *Room) Close() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registry.ActiveCount() > 0 {
		return false
	}
	r.closed = true
	return true
}

// Closed reports whether the room was torn down.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// CzarCount reports how many active users currently hold the czar role.
func (r *Room) CzarCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.registry.Active() {
		if u.Role == RoleCzar {
			n++
		}
	}
	return n
}
