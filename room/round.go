// room/round.go
package room

import (
	"fmt"
	"math/rand"

	"github.com/wfunc/partydeck/cards"
)

// RoundState 房间一局的阶段
type RoundState int

const (
	StateNew RoundState = iota + 1
	StateChoosing
	StateRevealing
	StateViewingWinner
)

func (s RoundState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateChoosing:
		return "choosingAnswers"
	case StateRevealing:
		return "revealingAnswers"
	case StateViewingWinner:
		return "viewingWinner"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// legalNext is the transition table. Choosing -> Choosing is the prompt skip;
// Revealing -> Choosing is the czar-loss fallback.
var legalNext = map[RoundState][]RoundState{
	StateNew:           {StateChoosing},
	StateChoosing:      {StateChoosing, StateRevealing},
	StateRevealing:     {StateViewingWinner, StateChoosing},
	StateViewingWinner: {StateChoosing},
}

// Submission is one participant's answer group for the current prompt. The
// owner stays hidden from everyone else until the winner is chosen.
type Submission struct {
	Owner    int64
	Cards    []cards.Answer
	Revealed []bool
}

// FullyRevealed reports whether every card in the group has been revealed.
func (g *Submission) FullyRevealed() bool {
	for _, r := range g.Revealed {
		if !r {
			return false
		}
	}
	return true
}

// Round owns the per-round data: the active prompt, the submitted answer
// groups and their reveal visibility, the highlighted group and the winner.
// Every mutating method validates before touching state, so a rejected call
// leaves the round exactly as it was. Not safe for concurrent use: the
// owning room serializes access.
type Round struct {
	state    RoundState
	prompt   *cards.Prompt
	groups   []*Submission
	byOwner  map[int64]*Submission
	selected int // index into groups, -1 when nothing highlighted
	winner   int64
	rng      *rand.Rand
}

func NewRound(rng *rand.Rand) *Round {
	return &Round{
		state:    StateNew,
		byOwner:  make(map[int64]*Submission),
		selected: -1,
		rng:      rng,
	}
}

func (r *Round) State() RoundState {
	return r.state
}

func (r *Round) Prompt() *cards.Prompt {
	return r.prompt
}

func (r *Round) transition(to RoundState) error {
	for _, next := range legalNext[r.state] {
		if next == to {
			r.state = to
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", r.state, to, ErrIllegalTransition)
}

// StartChoosing opens a fresh answering phase with the given prompt. All
// submissions, the highlight and the winner from the prior round are
// discarded. Legal from New, ViewingWinner, Choosing (prompt skip) and
// Revealing (czar-loss fallback).
func (r *Round) StartChoosing(prompt cards.Prompt) error {
	if r.state != StateNew && r.state != StateViewingWinner &&
		r.state != StateChoosing && r.state != StateRevealing {
		return fmt.Errorf("start round in %s: %w", r.state, ErrIllegalTransition)
	}
	p := prompt
	r.state = StateChoosing
	r.prompt = &p
	r.groups = nil
	r.byOwner = make(map[int64]*Submission)
	r.selected = -1
	r.winner = 0
	return nil
}

// Submit stores an answer group. The cards were already validated against
// the owner's hand by the coordinator; here the group length is checked
// against the prompt's pick count and double submissions are rejected.
func (r *Round) Submit(owner int64, picked []cards.Answer) error {
	if r.state != StateChoosing {
		return fmt.Errorf("submit in %s: %w", r.state, ErrIllegalTransition)
	}
	if len(picked) != r.prompt.Pick {
		return fmt.Errorf("submitted %d cards, prompt picks %d: %w", len(picked), r.prompt.Pick, ErrInvalidSubmission)
	}
	if _, dup := r.byOwner[owner]; dup {
		return fmt.Errorf("user %d: %w", owner, ErrAlreadySubmitted)
	}
	g := &Submission{
		Owner:    owner,
		Cards:    append([]cards.Answer(nil), picked...),
		Revealed: make([]bool, len(picked)),
	}
	r.groups = append(r.groups, g)
	r.byOwner[owner] = g
	return nil
}

func (r *Round) SubmissionCount() int {
	return len(r.groups)
}

func (r *Round) HasSubmitted(owner int64) bool {
	_, ok := r.byOwner[owner]
	return ok
}

// BeginReveal freezes the submissions and assigns the presentation order: a
// uniformly random permutation, fixed for the rest of the round.
func (r *Round) BeginReveal() error {
	if err := r.transition(StateRevealing); err != nil {
		return err
	}
	r.rng.Shuffle(len(r.groups), func(i, j int) {
		r.groups[i], r.groups[j] = r.groups[j], r.groups[i]
	})
	return nil
}

// Reveal marks one card visible and returns it. Revealing an already-visible
// card reports already=true so the caller can suppress the broadcast.
func (r *Round) Reveal(group, pos int) (card cards.Answer, already bool, err error) {
	if r.state != StateRevealing {
		return cards.Answer{}, false, fmt.Errorf("reveal in %s: %w", r.state, ErrIllegalTransition)
	}
	if group < 0 || group >= len(r.groups) {
		return cards.Answer{}, false, fmt.Errorf("group %d: %w", group, ErrNotFound)
	}
	g := r.groups[group]
	if pos < 0 || pos >= len(g.Cards) {
		return cards.Answer{}, false, fmt.Errorf("group %d position %d: %w", group, pos, ErrNotFound)
	}
	if g.Revealed[pos] {
		return g.Cards[pos], true, nil
	}
	g.Revealed[pos] = true
	return g.Cards[pos], false, nil
}

// Select highlights a group (or clears the highlight with -1). Marking
// intent only; re-selectable at will until the winner is committed.
func (r *Round) Select(group int) error {
	if r.state != StateRevealing {
		return fmt.Errorf("select in %s: %w", r.state, ErrIllegalTransition)
	}
	if group != -1 && (group < 0 || group >= len(r.groups)) {
		return fmt.Errorf("group %d: %w", group, ErrNotFound)
	}
	r.selected = group
	return nil
}

func (r *Round) Selected() int {
	return r.selected
}

// PickWinner commits the highlighted group as the winner, revealing its
// owner, and moves the round to ViewingWinner. Every card in the group must
// already be revealed.
func (r *Round) PickWinner(group int) (*Submission, error) {
	if r.state != StateRevealing {
		return nil, fmt.Errorf("pick winner in %s: %w", r.state, ErrIllegalTransition)
	}
	if group < 0 || group >= len(r.groups) {
		return nil, fmt.Errorf("group %d: %w", group, ErrNotFound)
	}
	if r.selected != group {
		return nil, fmt.Errorf("group %d is not selected: %w", group, ErrIllegalTransition)
	}
	g := r.groups[group]
	if !g.FullyRevealed() {
		return nil, fmt.Errorf("group %d has unrevealed cards: %w", group, ErrIllegalTransition)
	}
	if err := r.transition(StateViewingWinner); err != nil {
		return nil, err
	}
	r.winner = g.Owner
	return g, nil
}

func (r *Round) Winner() int64 {
	return r.winner
}

func (r *Round) Groups() []*Submission {
	return r.groups
}

// WinningCards returns the committed winner's cards, nil before a winner.
func (r *Round) WinningCards() []cards.Answer {
	if r.winner == 0 {
		return nil
	}
	return r.byOwner[r.winner].Cards
}

// RevealedViews 返回每组的可见卡片，未翻开的位置为 nil，可安全发给非所有者
func (r *Round) RevealedViews() map[int][]*cards.Answer {
	if r.state != StateRevealing {
		return nil
	}
	out := make(map[int][]*cards.Answer, len(r.groups))
	for i, g := range r.groups {
		view := make([]*cards.Answer, len(g.Cards))
		for j := range g.Cards {
			if g.Revealed[j] {
				c := g.Cards[j]
				view[j] = &c
			}
		}
		out[i] = view
	}
	return out
}
