package room

import (
	"errors"
	"fmt"
	"testing"

	"github.com/wfunc/partydeck/cards"
	"github.com/wfunc/partydeck/network"
)

// MockBroadcaster is a test double for the Broadcaster interface. It records
// every event so tests can assert on what left the room.
type MockBroadcaster struct {
	broadcasts []uint16
	unicasts   map[int64][]uint16
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{unicasts: make(map[int64][]uint16)}
}

func (m *MockBroadcaster) BroadcastToRoom(roomID int, msgID uint16, data []byte) error {
	m.broadcasts = append(m.broadcasts, msgID)
	return nil
}

func (m *MockBroadcaster) BroadcastToRoomExcept(roomID int, exceptUserID int64, msgID uint16, data []byte) error {
	m.broadcasts = append(m.broadcasts, msgID)
	return nil
}

func (m *MockBroadcaster) SendToUser(userID int64, msgID uint16, data []byte) error {
	m.unicasts[userID] = append(m.unicasts[userID], msgID)
	return nil
}

func (m *MockBroadcaster) countBroadcasts(msgID uint16) int {
	n := 0
	for _, id := range m.broadcasts {
		if id == msgID {
			n++
		}
	}
	return n
}

func (m *MockBroadcaster) countUnicasts(userID int64, msgID uint16) int {
	n := 0
	for _, id := range m.unicasts[userID] {
		if id == msgID {
			n++
		}
	}
	return n
}

func testOptions() Options {
	return Options{HandSize: 7, MinSubmissions: 2, Capacity: 12, Seed: 42}
}

// newEnteredRoom builds a room with users 1..n fully through the two-phase
// join. User 1 is the admin.
func newEnteredRoom(t *testing.T, n int) (*Room, *MockBroadcaster) {
	t.Helper()
	return newEnteredRoomWithCatalog(t, n, cards.BuiltinCatalog())
}

func newEnteredRoomWithCatalog(t *testing.T, n int, c *cards.Catalog) (*Room, *MockBroadcaster) {
	t.Helper()
	mb := NewMockBroadcaster()
	r := NewRoom(1, "join-token", "admin-token", c, testOptions(), mb)
	for i := 1; i <= n; i++ {
		id := int64(i)
		if err := r.Reserve(id, i == 1); err != nil {
			t.Fatalf("Reserve(%d) failed: %v", id, err)
		}
		icons := r.AvailableIcons()
		if len(icons) == 0 {
			t.Fatal("ran out of icons")
		}
		if err := r.ReserveIcon(id, icons[0]); err != nil {
			t.Fatalf("ReserveIcon(%d) failed: %v", id, err)
		}
		if _, err := r.Enter(id, fmt.Sprintf("player%d", i)); err != nil {
			t.Fatalf("Enter(%d) failed: %v", id, err)
		}
	}
	return r, mb
}

func startGame(t *testing.T, r *Room, rotate bool) {
	t.Helper()
	err := r.ApplySettings(1, Settings{Edition: "base", Packs: []string{"extra"}, RotateCzar: rotate, Open: true})
	if err != nil {
		t.Fatalf("ApplySettings failed: %v", err)
	}
}

func getUser(t *testing.T, r *Room, id int64) *User {
	t.Helper()
	u, err := r.registry.Get(id)
	if err != nil {
		t.Fatalf("user %d missing: %v", id, err)
	}
	return u
}

// submitFor picks the first cards from the user's hand matching the prompt's
// pick count and submits them.
func submitFor(t *testing.T, r *Room, id int64) {
	t.Helper()
	u := getUser(t, r, id)
	pick := r.round.Prompt().Pick
	ids := make([]int, 0, pick)
	for _, c := range u.Hand[:pick] {
		ids = append(ids, c.ID)
	}
	if _, err := r.SubmitAnswers(id, ids); err != nil {
		t.Fatalf("SubmitAnswers(%d) failed: %v", id, err)
	}
}

// revealAll flips every card of every group as the czar.
func revealAll(t *testing.T, r *Room, czarID int64) {
	t.Helper()
	for g, grp := range r.round.Groups() {
		for pos := range grp.Cards {
			if err := r.RevealCard(czarID, g, pos); err != nil {
				t.Fatalf("RevealCard(%d,%d) failed: %v", g, pos, err)
			}
		}
	}
}

func TestRoom_FullRoundTrip(t *testing.T) {
	r, mb := newEnteredRoom(t, 3)
	startGame(t, r, true)

	if r.State() != StateChoosing {
		t.Fatalf("expected Choosing after setup, got %s", r.State())
	}
	if got := getUser(t, r, 1).Role; got != RoleCzar {
		t.Fatalf("admin must be first czar, got role %d", got)
	}
	for _, id := range []int64{2, 3} {
		u := getUser(t, r, id)
		if u.Role != RoleChoosing {
			t.Fatalf("user %d must be choosing, got role %d", id, u.Role)
		}
		want := 7 + r.round.Prompt().Draw
		if len(u.Hand) != want {
			t.Fatalf("user %d hand: expected %d cards, got %d", id, want, len(u.Hand))
		}
	}

	submitFor(t, r, 2)
	submitFor(t, r, 3)

	// Hands replenish back to the base size after a submission.
	for _, id := range []int64{2, 3} {
		if got := len(getUser(t, r, id).Hand); got != 7 {
			t.Fatalf("user %d hand after submit: expected 7, got %d", id, got)
		}
	}
	if mb.countUnicasts(1, network.MsgTypeAnswersReady) == 0 {
		t.Fatal("czar should have been told the answers are ready")
	}

	groups, err := r.StartReading(1)
	if err != nil {
		t.Fatalf("StartReading failed: %v", err)
	}
	if groups != 2 {
		t.Fatalf("expected 2 groups, got %d", groups)
	}
	if r.State() != StateRevealing {
		t.Fatalf("expected Revealing, got %s", r.State())
	}

	revealAll(t, r, 1)
	sel := 0
	if err := r.SelectGroup(1, &sel); err != nil {
		t.Fatalf("SelectGroup failed: %v", err)
	}
	if err := r.SelectWinner(1, 0); err != nil {
		t.Fatalf("SelectWinner failed: %v", err)
	}
	if r.State() != StateViewingWinner {
		t.Fatalf("expected ViewingWinner, got %s", r.State())
	}

	winnerID := r.round.Winner()
	winner := getUser(t, r, winnerID)
	if winner.Score != 1 {
		t.Fatalf("winner score: expected 1, got %d", winner.Score)
	}
	if winner.Role != RoleWinner && winner.Role != RoleWinnerAndNextCzar {
		t.Fatalf("winner role wrong: %d", winner.Role)
	}

	// With rotation on and a third player available, the winner never judges
	// the next round.
	var next *User
	for _, u := range r.registry.Active() {
		if u.Role.NextCzar() {
			next = u
		}
	}
	if next == nil {
		t.Fatal("no next czar designated")
	}
	if next.ID == winnerID {
		t.Fatalf("rotation must pass the czar seat past the winner (winner=%d)", winnerID)
	}
	if next.ID == 1 {
		t.Fatal("outgoing czar must not judge twice in a row")
	}

	if err := r.NextRound(next.ID); err != nil {
		t.Fatalf("NextRound failed: %v", err)
	}
	if r.State() != StateChoosing {
		t.Fatalf("expected Choosing after NextRound, got %s", r.State())
	}
	if got := getUser(t, r, next.ID).Role; got != RoleCzar {
		t.Fatalf("next czar must hold the czar seat, got role %d", got)
	}
	if r.CzarCount() != 1 {
		t.Fatalf("exactly one czar expected, got %d", r.CzarCount())
	}
	if mb.countBroadcasts(network.MsgTypeRoundStarted) != 1 {
		t.Fatal("RoundStarted must be broadcast once")
	}
}

func TestRoom_WinnerJudgesWithRotationOff(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, false)

	submitFor(t, r, 2)
	submitFor(t, r, 3)
	if _, err := r.StartReading(1); err != nil {
		t.Fatalf("StartReading failed: %v", err)
	}
	revealAll(t, r, 1)
	sel := 0
	r.SelectGroup(1, &sel)
	if err := r.SelectWinner(1, 0); err != nil {
		t.Fatalf("SelectWinner failed: %v", err)
	}

	winnerID := r.round.Winner()
	if got := getUser(t, r, winnerID).Role; got != RoleWinnerAndNextCzar {
		t.Fatalf("with rotation off the winner judges next, got role %d", got)
	}
	if err := r.NextRound(winnerID); err != nil {
		t.Fatalf("NextRound by winner failed: %v", err)
	}
	if got := getUser(t, r, winnerID).Role; got != RoleCzar {
		t.Fatalf("winner must now be czar, got role %d", got)
	}
}

func TestRoom_SubmitRejections(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, true)

	// The czar holds no choosing role and cannot submit.
	u1 := getUser(t, r, 1)
	if _, err := r.SubmitAnswers(1, []int{u1.Hand[0].ID}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected czar rejection, got %v", err)
	}

	// A card id not in the hand leaves the hand untouched.
	u2 := getUser(t, r, 2)
	before := len(u2.Hand)
	pick := r.round.Prompt().Pick
	bad := make([]int, pick)
	for i := range bad {
		bad[i] = -1
	}
	if _, err := r.SubmitAnswers(2, bad); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
	if len(u2.Hand) != before {
		t.Fatalf("rejected submit must not touch the hand: %d vs %d", len(u2.Hand), before)
	}

	// Wrong pick count.
	tooMany := make([]int, pick+1)
	for i := range tooMany {
		tooMany[i] = u2.Hand[i].ID
	}
	if _, err := r.SubmitAnswers(2, tooMany); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected pick count rejection, got %v", err)
	}

	// Double submission.
	submitFor(t, r, 2)
	ids := []int{getUser(t, r, 2).Hand[0].ID}
	for len(ids) < pick {
		ids = append(ids, getUser(t, r, 2).Hand[len(ids)].ID)
	}
	if _, err := r.SubmitAnswers(2, ids); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected rejection after submit (role moved on), got %v", err)
	}
}

func TestRoom_SubmitWithOversizedHand(t *testing.T) {
	// A Draw 5 / Pick 1 prompt leaves the hand over the target size after
	// submitting; the replenish must deal nothing instead of blowing up.
	c := cards.NewCatalog()
	base := &cards.Pack{ID: "base", Name: "Base"}
	base.Prompts = append(base.Prompts, cards.Prompt{ID: 1, Text: "Draw five, play one: ____.", Draw: 5, Pick: 1})
	for i := 0; i < 40; i++ {
		base.Answers = append(base.Answers, cards.Answer{ID: 1000 + i, Text: fmt.Sprintf("card %d", i)})
	}
	c.AddEdition(base)

	r, _ := newEnteredRoomWithCatalog(t, 3, c)
	if err := r.ApplySettings(1, Settings{Edition: "base", RotateCzar: true, Open: true}); err != nil {
		t.Fatalf("ApplySettings failed: %v", err)
	}

	u := getUser(t, r, 2)
	before := len(u.Hand)
	if before != testOptions().HandSize+5 {
		t.Fatalf("expected hand of %d, got %d", testOptions().HandSize+5, before)
	}
	newCards, err := r.SubmitAnswers(2, []int{u.Hand[0].ID})
	if err != nil {
		t.Fatalf("SubmitAnswers failed: %v", err)
	}
	if len(newCards) != 0 {
		t.Fatalf("hand already over target, yet %d cards were dealt", len(newCards))
	}
	if len(u.Hand) != before-1 {
		t.Fatalf("expected hand of %d after submit, got %d", before-1, len(u.Hand))
	}
}

func TestRoom_AutoSkipBelowThreshold(t *testing.T) {
	// Two players: the only answer can never reach the threshold of two, so
	// the prompt skips automatically once everyone has submitted.
	r, mb := newEnteredRoom(t, 2)
	startGame(t, r, true)

	submitFor(t, r, 2)

	if r.State() != StateChoosing {
		t.Fatalf("expected Choosing after auto-skip, got %s", r.State())
	}
	if r.round.SubmissionCount() != 0 {
		t.Fatalf("submissions must be discarded on skip, got %d", r.round.SubmissionCount())
	}
	if got := getUser(t, r, 2).Role; got != RoleChoosing {
		t.Fatalf("user 2 must be choosing again, got role %d", got)
	}
	if mb.countBroadcasts(network.MsgTypePromptSkipped) != 1 {
		t.Fatal("expected one PromptSkipped broadcast")
	}
	if r.CzarCount() != 1 {
		t.Fatalf("exactly one czar expected, got %d", r.CzarCount())
	}
}

func TestRoom_StartReadingRequiresThreshold(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, true)

	submitFor(t, r, 2)
	if _, err := r.StartReading(1); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected threshold rejection, got %v", err)
	}

	// Non-czar cannot start reading either.
	submitFor(t, r, 3)
	if _, err := r.StartReading(2); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected czar-only rejection, got %v", err)
	}
}

func TestRoom_StragglersForfeit(t *testing.T) {
	r, _ := newEnteredRoom(t, 4)
	startGame(t, r, true)

	submitFor(t, r, 2)
	submitFor(t, r, 3)
	if _, err := r.StartReading(1); err != nil {
		t.Fatalf("StartReading failed: %v", err)
	}

	if got := getUser(t, r, 4).Role; got != RoleIdle {
		t.Fatalf("straggler must be idled, got role %d", got)
	}
}

func TestRoom_RevealTwiceBroadcastsOnce(t *testing.T) {
	r, mb := newEnteredRoom(t, 3)
	startGame(t, r, true)
	submitFor(t, r, 2)
	submitFor(t, r, 3)
	r.StartReading(1)

	if err := r.RevealCard(1, 0, 0); err != nil {
		t.Fatalf("first reveal failed: %v", err)
	}
	if err := r.RevealCard(1, 0, 0); err != nil {
		t.Fatalf("second reveal failed: %v", err)
	}
	if got := mb.countBroadcasts(network.MsgTypeCardRevealed); got != 1 {
		t.Fatalf("expected exactly one CardRevealed broadcast, got %d", got)
	}
}

func TestRoom_SelectWinnerRequiresFullReveal(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, true)
	submitFor(t, r, 2)
	submitFor(t, r, 3)
	r.StartReading(1)

	sel := 0
	if err := r.SelectGroup(1, &sel); err != nil {
		t.Fatalf("SelectGroup failed: %v", err)
	}
	if err := r.SelectWinner(1, 0); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected rejection with hidden cards, got %v", err)
	}
}

func TestRoom_CzarDisconnectMidChoosing(t *testing.T) {
	r, mb := newEnteredRoom(t, 3)
	startGame(t, r, true)
	submitFor(t, r, 2)

	active := r.Disconnect(1)
	if active != 2 {
		t.Fatalf("expected 2 active users, got %d", active)
	}
	if got := getUser(t, r, 1).Role; got != RoleInactive {
		t.Fatalf("gone czar must be inactive, got role %d", got)
	}
	// The round self-heals: a replacement czar and a fresh prompt.
	if r.CzarCount() != 1 {
		t.Fatalf("exactly one czar expected after promotion, got %d", r.CzarCount())
	}
	if r.State() != StateChoosing {
		t.Fatalf("expected Choosing, got %s", r.State())
	}
	if r.round.SubmissionCount() != 0 {
		t.Fatal("stale submissions must be discarded after czar loss")
	}
	if got := getUser(t, r, 2).Role; got != RoleCzar {
		t.Fatalf("user 2 is next in join order and should be czar, got role %d", got)
	}
	if mb.countBroadcasts(network.MsgTypePromptSkipped) == 0 {
		t.Fatal("czar replacement must be announced via PromptSkipped")
	}
}

func TestRoom_CzarDisconnectMidRevealing(t *testing.T) {
	r, _ := newEnteredRoom(t, 4)
	startGame(t, r, true)
	submitFor(t, r, 2)
	submitFor(t, r, 3)
	submitFor(t, r, 4)
	r.StartReading(1)

	r.Disconnect(1)
	if r.State() != StateChoosing {
		t.Fatalf("czar loss mid-reveal must restart choosing, got %s", r.State())
	}
	if r.CzarCount() != 1 {
		t.Fatalf("exactly one czar expected, got %d", r.CzarCount())
	}
}

func TestRoom_NextCzarDisconnectReassigns(t *testing.T) {
	r, _ := newEnteredRoom(t, 4)
	startGame(t, r, true)
	submitFor(t, r, 2)
	submitFor(t, r, 3)
	submitFor(t, r, 4)
	r.StartReading(1)
	revealAll(t, r, 1)
	sel := 0
	r.SelectGroup(1, &sel)
	if err := r.SelectWinner(1, 0); err != nil {
		t.Fatalf("SelectWinner failed: %v", err)
	}

	var next *User
	for _, u := range r.registry.Active() {
		if u.Role.NextCzar() {
			next = u
		}
	}
	if next == nil {
		t.Fatal("no next czar designated")
	}

	r.Disconnect(next.ID)

	var replacement *User
	for _, u := range r.registry.Active() {
		if u.Role.NextCzar() {
			replacement = u
		}
	}
	if replacement == nil {
		t.Fatal("next czar seat must be refilled")
	}
	if replacement.ID == next.ID {
		t.Fatal("replacement must differ from the one who left")
	}
	if err := r.NextRound(replacement.ID); err != nil {
		t.Fatalf("NextRound by replacement failed: %v", err)
	}
}

func TestRoom_IdleDisconnectTriggersAutoSkipCheck(t *testing.T) {
	// Three players: one submits, the other chooser leaves. The remaining
	// single answer can never reach the threshold, so the prompt skips.
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, true)
	submitFor(t, r, 2)

	r.Disconnect(3)
	if r.State() != StateChoosing {
		t.Fatalf("expected Choosing, got %s", r.State())
	}
	if r.round.SubmissionCount() != 0 {
		t.Fatal("unreachable threshold must trigger a skip")
	}
}

func TestRoom_TwoPhaseJoin(t *testing.T) {
	mb := NewMockBroadcaster()
	r := NewRoom(1, "jt", "at", cards.BuiltinCatalog(), testOptions(), mb)
	if err := r.Reserve(1, true); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// Name before icon is rejected.
	if _, err := r.Enter(1, "alice"); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected icon-first rejection, got %v", err)
	}

	// Unknown icon is rejected.
	if err := r.ReserveIcon(1, "no-such-icon"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown icon rejection, got %v", err)
	}

	icons := r.AvailableIcons()
	if err := r.ReserveIcon(1, icons[0]); err != nil {
		t.Fatalf("ReserveIcon failed: %v", err)
	}

	// Empty name is rejected.
	if _, err := r.Enter(1, ""); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected empty name rejection, got %v", err)
	}

	res, err := r.Enter(1, "alice")
	if err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	if res.Message == nil || !res.Message.IsSystemMsg {
		t.Fatal("join must produce a system message")
	}

	// Entering twice is rejected.
	if _, err := r.Enter(1, "bob"); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected double enter rejection, got %v", err)
	}

	// A second user cannot take the same icon or name.
	if err := r.Reserve(2, false); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if err := r.ReserveIcon(2, icons[0]); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected icon conflict, got %v", err)
	}
	if err := r.ReserveIcon(2, icons[1]); err != nil {
		t.Fatalf("ReserveIcon failed: %v", err)
	}
	if _, err := r.Enter(2, "alice"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected name conflict, got %v", err)
	}
}

func TestRoom_MidGameJoinerStartsChoosing(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, true)

	if err := r.Reserve(9, false); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	icons := r.AvailableIcons()
	if err := r.ReserveIcon(9, icons[0]); err != nil {
		t.Fatalf("ReserveIcon failed: %v", err)
	}
	res, err := r.Enter(9, "late")
	if err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	if res.State != int(RoleChoosing) {
		t.Fatalf("mid-game joiner must start choosing, got state %d", res.State)
	}
	want := 7 + r.round.Prompt().Draw
	if len(res.Hand) != want {
		t.Fatalf("expected %d cards, got %d", want, len(res.Hand))
	}
}

func TestRoom_SettingsAfterStart(t *testing.T) {
	r, mb := newEnteredRoom(t, 3)
	startGame(t, r, true)

	// Edition is frozen once gameplay started.
	err := r.ApplySettings(1, Settings{Edition: "other", RotateCzar: true, Open: true})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected edition freeze rejection, got %v", err)
	}

	// Open flag and rotation remain adjustable.
	if err := r.ApplySettings(1, Settings{Edition: "base", RotateCzar: false, Open: false}); err != nil {
		t.Fatalf("post-start settings change failed: %v", err)
	}
	if mb.countBroadcasts(network.MsgTypeSettingsChanged) != 1 {
		t.Fatal("expected a SettingsChanged broadcast")
	}

	// Non-admin cannot touch settings.
	err = r.ApplySettings(2, Settings{Edition: "base", RotateCzar: true, Open: true})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected admin-only rejection, got %v", err)
	}
}

func TestRoom_ExpansionChangeKeepsHandsUnique(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, false)
	submitFor(t, r, 2)

	held := make(map[int]bool)
	for _, u := range r.registry.All() {
		for _, card := range u.Hand {
			held[card.ID] = true
		}
	}
	for _, g := range r.round.Groups() {
		for _, card := range g.Cards {
			held[card.ID] = true
		}
	}

	// Dropping the expansion pack rebuilds the draw pile; nothing dealt or
	// submitted may come back into it.
	if err := r.ApplySettings(1, Settings{Edition: "base", RotateCzar: false, Open: true}); err != nil {
		t.Fatalf("expansion change failed: %v", err)
	}
	for _, card := range r.deck.DealAnswers(1000) {
		if held[card.ID] {
			t.Fatalf("card %d is in a hand and in the rebuilt pile", card.ID)
		}
	}
}

func TestRoom_OpenMatchmakingWindow(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	if r.Open() {
		t.Fatal("room must not be open before the admin opens it")
	}
	startGame(t, r, true)
	if !r.Open() {
		t.Fatal("open room in Choosing must accept matchmaking")
	}

	// Reading phase closes the window.
	submitFor(t, r, 2)
	submitFor(t, r, 3)
	r.StartReading(1)
	if r.Open() {
		t.Fatal("room in Revealing must not accept matchmaking")
	}
}

func TestRoom_CloseOnlyWhenEmpty(t *testing.T) {
	r, _ := newEnteredRoom(t, 2)
	if r.Close() {
		t.Fatal("occupied room must not close")
	}
	r.Disconnect(1)
	r.Disconnect(2)
	if !r.Close() {
		t.Fatal("empty room must close")
	}
	if err := r.Reserve(5, false); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
	if _, err := r.Chat(1, "hi"); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}

func TestRoom_RejoinRestoresState(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, true)

	score := getUser(t, r, 2).Score
	r.Disconnect(2)
	if got := getUser(t, r, 2).Role; got != RoleInactive {
		t.Fatalf("expected inactive, got role %d", got)
	}

	snap, err := r.Rejoin(2)
	if err != nil {
		t.Fatalf("Rejoin failed: %v", err)
	}
	u := getUser(t, r, 2)
	if u.Score != score {
		t.Fatalf("score must survive the disconnect: %d vs %d", u.Score, score)
	}
	if u.Role != RoleChoosing {
		t.Fatalf("rejoiner mid-choosing must choose again, got role %d", u.Role)
	}
	if len(snap.Hand) == 0 {
		t.Fatal("snapshot must carry the rejoiner's hand")
	}
	if snap.Room.State != int(StateChoosing) {
		t.Fatalf("snapshot state wrong: %d", snap.Room.State)
	}
}

func TestRoom_SnapshotHidesUnrevealed(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)
	startGame(t, r, true)
	submitFor(t, r, 2)
	submitFor(t, r, 3)
	r.StartReading(1)
	r.RevealCard(1, 0, 0)

	snap := r.Snapshot()
	if len(snap.ResponseGroups) != 2 {
		t.Fatalf("expected 2 response groups, got %d", len(snap.ResponseGroups))
	}
	if snap.ResponseGroups[0][0] == nil {
		t.Fatal("revealed card must be present")
	}
	for pos, c := range snap.ResponseGroups[1] {
		if c != nil {
			t.Fatalf("group 1 position %d must be hidden", pos)
		}
	}
}

func TestRoom_ChatAndLikes(t *testing.T) {
	r, _ := newEnteredRoom(t, 2)

	msg, err := r.Chat(1, "hello")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if msg.IsSystemMsg {
		t.Fatal("user message must not be a system message")
	}

	if err := r.LikeMessage(2, msg.ID); err != nil {
		t.Fatalf("LikeMessage failed: %v", err)
	}
	if err := r.LikeMessage(2, msg.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected double-like conflict, got %v", err)
	}
	if err := r.UnlikeMessage(2, msg.ID); err != nil {
		t.Fatalf("UnlikeMessage failed: %v", err)
	}
	if err := r.UnlikeMessage(2, msg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing-like NotFound, got %v", err)
	}
	if err := r.LikeMessage(2, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing-message NotFound, got %v", err)
	}

	// Empty chat content is invalid.
	if _, err := r.Chat(1, ""); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected empty content rejection, got %v", err)
	}
}

func TestRoom_FlairAdminOnly(t *testing.T) {
	r, mb := newEnteredRoom(t, 2)

	target := int64(2)
	if err := r.ApplyFlair(2, &target); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected admin-only rejection, got %v", err)
	}
	if err := r.ApplyFlair(1, &target); err != nil {
		t.Fatalf("ApplyFlair failed: %v", err)
	}
	if mb.countBroadcasts(network.MsgTypeFlairApplied) != 1 {
		t.Fatal("expected FlairApplied broadcast")
	}

	// Clearing with nil target.
	if err := r.ApplyFlair(1, nil); err != nil {
		t.Fatalf("clearing flair failed: %v", err)
	}
	if r.Snapshot().Room.FlaredUser != 0 {
		t.Fatal("flair must be cleared")
	}
}

func TestRoom_RecycleHand(t *testing.T) {
	r, _ := newEnteredRoom(t, 3)

	// Before setup there is nothing to recycle.
	if _, _, err := r.RecycleHand(2); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected pre-setup rejection, got %v", err)
	}

	startGame(t, r, true)
	before := append([]cards.Answer(nil), getUser(t, r, 2).Hand...)
	hand, msg, err := r.RecycleHand(2)
	if err != nil {
		t.Fatalf("RecycleHand failed: %v", err)
	}
	if len(hand) != len(before) {
		t.Fatalf("recycled hand size: %d vs %d", len(hand), len(before))
	}
	if msg == nil || !msg.IsSystemMsg {
		t.Fatal("recycle must post a system message")
	}
}

func TestRoom_CapacityLimit(t *testing.T) {
	mb := NewMockBroadcaster()
	opts := testOptions()
	opts.Capacity = 2
	r := NewRoom(1, "jt", "at", cards.BuiltinCatalog(), opts, mb)
	if err := r.Reserve(1, true); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if err := r.Reserve(2, false); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if err := r.Reserve(3, false); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
}
