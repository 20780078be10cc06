// cards/cards.go
package cards

// Answer is a white card.
type Answer struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Prompt is a black card. Pick is the number of answers required (1-3),
// Draw is the number of extra cards dealt to compensate for multi-pick prompts.
type Prompt struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Draw int    `json:"draw"`
	Pick int    `json:"pick"`
}
