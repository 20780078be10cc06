// cards/deck.go
package cards

import (
	"errors"
	"math/rand"
)

var ErrExhausted = errors.New("deck exhausted")

// Deck deals prompts and answers without replacement for a single room. Used
// cards go to discard piles which are reshuffled back in when a pile runs dry.
// The deck is not safe for concurrent use; the owning room serializes access.
type Deck struct {
	prompts       []Prompt
	answers       []Answer
	promptDiscard []Prompt
	answerDiscard []Answer
	rng           *rand.Rand
}

// NewDeck builds a shuffled deck from the given pools. The rng is owned by the
// caller and reused for reveal-order shuffling so tests can seed it.
func NewDeck(prompts []Prompt, answers []Answer, rng *rand.Rand) *Deck {
	d := &Deck{
		prompts: append([]Prompt(nil), prompts...),
		answers: append([]Answer(nil), answers...),
		rng:     rng,
	}
	rng.Shuffle(len(d.prompts), func(i, j int) { d.prompts[i], d.prompts[j] = d.prompts[j], d.prompts[i] })
	rng.Shuffle(len(d.answers), func(i, j int) { d.answers[i], d.answers[j] = d.answers[j], d.answers[i] })
	return d
}

// DrawPrompt deals the next prompt card.
func (d *Deck) DrawPrompt() (Prompt, error) {
	if len(d.prompts) == 0 {
		if len(d.promptDiscard) == 0 {
			return Prompt{}, ErrExhausted
		}
		d.prompts = d.promptDiscard
		d.promptDiscard = nil
		d.rng.Shuffle(len(d.prompts), func(i, j int) { d.prompts[i], d.prompts[j] = d.prompts[j], d.prompts[i] })
	}
	p := d.prompts[len(d.prompts)-1]
	d.prompts = d.prompts[:len(d.prompts)-1]
	return p, nil
}

// DealAnswers deals up to n answer cards, reshuffling the discard pile in if
// the draw pile runs out. Fewer than n cards are returned only when both
// piles are empty. A non-positive n deals nothing: a hand can already be over
// the target size after submitting fewer cards than the prompt dealt.
func (d *Deck) DealAnswers(n int) []Answer {
	if n <= 0 {
		return nil
	}
	out := make([]Answer, 0, n)
	for len(out) < n {
		if len(d.answers) == 0 {
			if len(d.answerDiscard) == 0 {
				break
			}
			d.answers = d.answerDiscard
			d.answerDiscard = nil
			d.rng.Shuffle(len(d.answers), func(i, j int) { d.answers[i], d.answers[j] = d.answers[j], d.answers[i] })
		}
		out = append(out, d.answers[len(d.answers)-1])
		d.answers = d.answers[:len(d.answers)-1]
	}
	return out
}

func (d *Deck) DiscardAnswers(cards []Answer) {
	d.answerDiscard = append(d.answerDiscard, cards...)
}

func (d *Deck) DiscardPrompt(p Prompt) {
	d.promptDiscard = append(d.promptDiscard, p)
}

// Remaining reports the sizes of the answer draw and discard piles.
func (d *Deck) Remaining() (draw, discard int) {
	return len(d.answers), len(d.answerDiscard)
}
