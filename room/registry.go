// room/registry.go
package room

import (
	"fmt"

	"github.com/wfunc/partydeck/cards"
	"github.com/wfunc/partydeck/models"
)

// Role 用户在一局中的角色
type Role int

const (
	RoleIdle Role = iota + 1
	RoleChoosing
	RoleCzar
	RoleWinner
	RoleNextCzar
	RoleWinnerAndNextCzar
	RoleInactive
)

// Active reports whether the user counts as present in the room.
func (r Role) Active() bool {
	return r >= RoleIdle && r < RoleInactive
}

// NextCzar reports whether the user judges the next round.
func (r Role) NextCzar() bool {
	return r == RoleNextCzar || r == RoleWinnerAndNextCzar
}

// User is one participant's record. Records are never deleted; disconnects
// only flip the role to Inactive so score and hand survive a reconnect.
type User struct {
	ID    int64
	Name  string
	Icon  string
	Score int
	Role  Role
	Admin bool
	Hand  []cards.Answer
}

// RemoveFromHand takes the cards with the given ids out of the hand. It
// mutates nothing and reports false if any id is not held.
func (u *User) RemoveFromHand(cardIDs []int) ([]cards.Answer, bool) {
	picked := make([]cards.Answer, 0, len(cardIDs))
	indices := make([]int, 0, len(cardIDs))
	for _, id := range cardIDs {
		found := -1
		for i, c := range u.Hand {
			if c.ID != id {
				continue
			}
			taken := false
			for _, j := range indices {
				if j == i {
					taken = true
					break
				}
			}
			if !taken {
				found = i
				break
			}
		}
		if found == -1 {
			return nil, false
		}
		indices = append(indices, found)
		picked = append(picked, u.Hand[found])
	}

	remaining := make([]cards.Answer, 0, len(u.Hand)-len(indices))
	for i, c := range u.Hand {
		skip := false
		for _, j := range indices {
			if j == i {
				skip = true
				break
			}
		}
		if !skip {
			remaining = append(remaining, c)
		}
	}
	u.Hand = remaining
	return picked, true
}

func (u *User) View() models.UserView {
	return models.UserView{
		ID:    u.ID,
		Name:  u.Name,
		Icon:  u.Icon,
		Score: u.Score,
		State: int(u.Role),
		Admin: u.Admin,
	}
}

// Registry is the per-room user store. It enforces uniqueness constraints
// (identity, icon, name) but never decides which role transition is legal;
// that is the round state machine's job. Not safe for concurrent use: the
// owning room serializes access.
type Registry struct {
	users     map[int64]*User
	joinOrder []int64
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[int64]*User)}
}

// Reserve creates the record for a user id allocated by the session layer.
// Reserving an id twice fails with Conflict and has no side effect.
func (r *Registry) Reserve(id int64, admin bool) (*User, error) {
	if _, exists := r.users[id]; exists {
		return nil, fmt.Errorf("user %d: %w", id, ErrConflict)
	}
	u := &User{ID: id, Role: RoleIdle, Admin: admin}
	r.users[id] = u
	r.joinOrder = append(r.joinOrder, id)
	return u, nil
}

func (r *Registry) Get(id int64) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

// SetName sets the display name. Another active user already holding the
// name is a Conflict.
func (r *Registry) SetName(id int64, name string) error {
	u, err := r.Get(id)
	if err != nil {
		return err
	}
	for _, other := range r.users {
		if other.ID != id && other.Role.Active() && other.Name == name {
			return fmt.Errorf("name %q: %w", name, ErrConflict)
		}
	}
	u.Name = name
	return nil
}

// ReserveIcon gives the user exclusive hold of an icon among active users.
func (r *Registry) ReserveIcon(id int64, icon string) error {
	u, err := r.Get(id)
	if err != nil {
		return err
	}
	for _, other := range r.users {
		if other.ID != id && other.Role.Active() && other.Icon == icon {
			return fmt.Errorf("icon %q: %w", icon, ErrConflict)
		}
	}
	u.Icon = icon
	return nil
}

func (r *Registry) ReleaseIcon(id int64) error {
	u, err := r.Get(id)
	if err != nil {
		return err
	}
	u.Icon = ""
	return nil
}

func (r *Registry) MarkInactive(id int64) error {
	return r.SetRole(id, RoleInactive)
}

func (r *Registry) SetRole(id int64, role Role) error {
	u, err := r.Get(id)
	if err != nil {
		return err
	}
	u.Role = role
	return nil
}

func (r *Registry) AddScore(id int64, delta int) error {
	u, err := r.Get(id)
	if err != nil {
		return err
	}
	if u.Score+delta < 0 {
		return fmt.Errorf("score below zero: %w", ErrConflict)
	}
	u.Score += delta
	return nil
}

// Active returns the non-inactive users in join order.
func (r *Registry) Active() []*User {
	out := make([]*User, 0, len(r.users))
	for _, id := range r.joinOrder {
		if u := r.users[id]; u.Role.Active() {
			out = append(out, u)
		}
	}
	return out
}

func (r *Registry) ActiveCount() int {
	return len(r.Active())
}

func (r *Registry) Size() int {
	return len(r.users)
}

// All returns every record, active or not, in join order.
func (r *Registry) All() []*User {
	out := make([]*User, 0, len(r.users))
	for _, id := range r.joinOrder {
		out = append(out, r.users[id])
	}
	return out
}

// Czar returns the current czar, if any.
func (r *Registry) Czar() (*User, bool) {
	for _, u := range r.users {
		if u.Role == RoleCzar {
			return u, true
		}
	}
	return nil, false
}

// NextAfter walks the join order starting after the given user, wrapping
// around, and returns the first active user not rejected by skip. The
// starting user itself is considered last.
func (r *Registry) NextAfter(id int64, skip func(*User) bool) (*User, bool) {
	start := -1
	for i, jid := range r.joinOrder {
		if jid == id {
			start = i
			break
		}
	}
	if start == -1 {
		start = len(r.joinOrder) - 1
	}
	n := len(r.joinOrder)
	for off := 1; off <= n; off++ {
		u := r.users[r.joinOrder[(start+off)%n]]
		if !u.Role.Active() {
			continue
		}
		if skip != nil && skip(u) {
			continue
		}
		return u, true
	}
	return nil, false
}

// AvailableIcons filters the configured icon list down to icons not held by
// any active user.
func (r *Registry) AvailableIcons(all []string) []string {
	held := make(map[string]bool)
	for _, u := range r.users {
		if u.Role.Active() && u.Icon != "" {
			held[u.Icon] = true
		}
	}
	out := make([]string, 0, len(all))
	for _, icon := range all {
		if !held[icon] {
			out = append(out, icon)
		}
	}
	return out
}

// Views returns client views for every user, keyed by id.
func (r *Registry) Views() map[int64]models.UserView {
	out := make(map[int64]models.UserView, len(r.users))
	for id, u := range r.users {
		out[id] = u.View()
	}
	return out
}
