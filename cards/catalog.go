// cards/catalog.go
package cards

import (
	"fmt"
	"sort"
)

// Pack is a named group of cards. An edition is a base pack; expansions are
// optional packs layered on top of it.
type Pack struct {
	ID      string
	Name    string
	Prompts []Prompt
	Answers []Answer
}

// Catalog holds every edition and expansion pack the server can deal from.
type Catalog struct {
	editions map[string]*Pack
	packs    map[string]*Pack
}

func NewCatalog() *Catalog {
	return &Catalog{
		editions: make(map[string]*Pack),
		packs:    make(map[string]*Pack),
	}
}

func (c *Catalog) AddEdition(p *Pack) {
	c.editions[p.ID] = p
}

func (c *Catalog) AddPack(p *Pack) {
	c.packs[p.ID] = p
}

// Editions returns edition id -> display name, sorted order not guaranteed.
func (c *Catalog) Editions() map[string]string {
	out := make(map[string]string, len(c.editions))
	for id, p := range c.editions {
		out[id] = p.Name
	}
	return out
}

// Packs returns expansion pack id -> display name.
func (c *Catalog) Packs() map[string]string {
	out := make(map[string]string, len(c.packs))
	for id, p := range c.packs {
		out[id] = p.Name
	}
	return out
}

// PackIDs returns the expansion ids in stable order.
func (c *Catalog) PackIDs() []string {
	ids := make([]string, 0, len(c.packs))
	for id := range c.packs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EditionPacks returns the edition packs in stable id order.
func (c *Catalog) EditionPacks() []*Pack {
	ids := make([]string, 0, len(c.editions))
	for id := range c.editions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Pack, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.editions[id])
	}
	return out
}

// ExpansionPacks returns the expansion packs in stable id order.
func (c *Catalog) ExpansionPacks() []*Pack {
	out := make([]*Pack, 0, len(c.packs))
	for _, id := range c.PackIDs() {
		out = append(out, c.packs[id])
	}
	return out
}

func (c *Catalog) HasEdition(id string) bool {
	_, ok := c.editions[id]
	return ok
}

// Select collects the prompt and answer pools for an edition plus the given
// expansion packs. Unknown expansion ids are skipped.
func (c *Catalog) Select(edition string, expansions []string) ([]Prompt, []Answer, error) {
	base, ok := c.editions[edition]
	if !ok {
		return nil, nil, fmt.Errorf("unknown edition %q", edition)
	}

	prompts := append([]Prompt(nil), base.Prompts...)
	answers := append([]Answer(nil), base.Answers...)

	for _, id := range expansions {
		pack, ok := c.packs[id]
		if !ok {
			continue
		}
		prompts = append(prompts, pack.Prompts...)
		answers = append(answers, pack.Answers...)
	}

	return prompts, answers, nil
}

// BuiltinCatalog returns the card set compiled into the binary, used when no
// database catalog is configured and in tests.
func BuiltinCatalog() *Catalog {
	c := NewCatalog()

	base := &Pack{ID: "base", Name: "Base Set"}
	for i, text := range builtinPrompts {
		base.Prompts = append(base.Prompts, Prompt{ID: i + 1, Text: text, Pick: 1})
	}
	// A couple of multi-pick prompts so draw/pick handling is exercised.
	base.Prompts = append(base.Prompts,
		Prompt{ID: 101, Text: "Step 1: ____. Step 2: ____. Step 3: profit.", Draw: 1, Pick: 2},
		Prompt{ID: 102, Text: "____ + ____ + ____ = the perfect party.", Draw: 2, Pick: 3},
	)
	for i, text := range builtinAnswers {
		base.Answers = append(base.Answers, Answer{ID: 1000 + i, Text: text})
	}
	c.AddEdition(base)

	extra := &Pack{ID: "extra", Name: "Extras"}
	for i, text := range builtinExtraAnswers {
		extra.Answers = append(extra.Answers, Answer{ID: 2000 + i, Text: text})
	}
	c.AddPack(extra)

	return c
}

var builtinPrompts = []string{
	"What is the secret to a long and happy life? ____.",
	"Nothing ruins a road trip like ____.",
	"The next big reality show: celebrities versus ____.",
	"I could not get through the week without ____.",
	"____: the gift that keeps on giving.",
	"My therapist says my problems all come back to ____.",
	"The museum's newest exhibit: a history of ____.",
	"Tonight's forecast calls for a 90% chance of ____.",
	"The real reason the meeting ran long: ____.",
	"Grandma's famous recipe calls for two cups of ____.",
}

var builtinAnswers = []string{
	"An aggressively friendly raccoon.",
	"Forty minutes of uninterrupted eye contact.",
	"A suspiciously cheap houseboat.",
	"The world's loudest keyboard.",
	"Expired coupons.",
	"A motivational poster about synergy.",
	"Three ferrets in a trench coat.",
	"Decaf coffee, unknowingly.",
	"A karaoke machine with one song.",
	"The neighbor's opinion about fences.",
	"An untranslatable feeling of dread.",
	"Free samples, taken in bulk.",
	"A very formal pigeon.",
	"Losing the TV remote for a decade.",
	"An apology written in skywriting.",
	"The office thermostat war.",
	"A parallel parking championship.",
	"Soup that is somehow both too hot and too cold.",
	"A lifetime supply of packing peanuts.",
	"Interpretive dance as a legal defense.",
	"The fourth hour of a board game.",
	"A haunted vending machine.",
	"Unsolicited banjo music.",
	"The last slice, taken without asking.",
	"A surprisingly judgmental cat.",
	"Glitter that never fully goes away.",
	"A group chat with no mute button.",
	"Mystery leftovers from last month.",
	"An escalator that is just stairs now.",
	"The printer, sensing fear.",
}

var builtinExtraAnswers = []string{
	"A podcast about podcasts.",
	"One single, perfect grape.",
	"The confidence of a man wearing socks with sandals.",
	"A rotisserie chicken on a leash.",
	"Twelve unread voicemails from an unknown number.",
	"A treadmill used exclusively as a coat rack.",
	"The untimely return of low-rise jeans.",
	"A wasp with a personal grudge.",
}
