// Package wizard drives the intake questionnaire: which steps are active,
// where the user is, and how each answer moves the draft forward.
package wizard

import (
	"github.com/Stagnxzione/ra-userbot/internal/domain"
)

// ActiveSteps returns the steps required for the draft's current answers.
// It is recomputed on every decision so a changed brand takes effect at once.
func ActiveSteps(d *domain.Draft) []domain.FieldKey {
	steps := make([]domain.FieldKey, 0, len(domain.StepOrder))
	for _, key := range domain.StepOrder {
		if key == domain.FieldTrailerPlate && d != nil && domain.IsSizeConstrained(d.Brand) {
			continue
		}
		steps = append(steps, key)
	}
	return steps
}

func indexOf(steps []domain.FieldKey, key domain.FieldKey) int {
	for i, k := range steps {
		if k == key {
			return i
		}
	}
	return -1
}

// User identifies who opened a session.
type User struct {
	ID       string
	Username string
}

// State is the durable part of a session slot.
type State struct {
	DraftID string `json:"draft_id"`
	Step    int    `json:"step"`
	Editing bool   `json:"editing"`
}

// Session is the single active draft of one chat session together with the
// wizard position.
type Session struct {
	ID      string
	Draft   *domain.Draft
	step    int
	editing bool
}

func newSession(id string, draft *domain.Draft, st State) *Session {
	return &Session{ID: id, Draft: draft, step: st.Step, editing: st.Editing}
}

// State snapshots the slot for the session store.
func (s *Session) State() State {
	return State{DraftID: s.Draft.ID, Step: s.step, Editing: s.editing}
}

// Active returns the active step list.
func (s *Session) Active() []domain.FieldKey {
	return ActiveSteps(s.Draft)
}

// Index returns the position clamped to the active list. The clamped value
// is written back.
func (s *Session) Index() int {
	steps := s.Active()
	s.step = clamp(s.step, len(steps))
	return s.step
}

// CurrentKey is the step the user is answering.
func (s *Session) CurrentKey() domain.FieldKey {
	return s.Active()[s.Index()]
}

// IsLast reports whether the position is on the final active step.
func (s *Session) IsLast() bool {
	return s.Index() >= len(s.Active())-1
}

// Editing reports whether the next accepted answer returns to the preview.
func (s *Session) Editing() bool { return s.editing }

// Advance moves one step forward; the last step is a fixed point.
func (s *Session) Advance() {
	s.step = clamp(s.Index()+1, len(s.Active()))
}

// Retreat moves one step back, stopping at the first step.
func (s *Session) Retreat() {
	s.step = clamp(s.Index()-1, len(s.Active()))
}

// Jump moves to the given step. It reports false when the step is not active.
func (s *Session) Jump(key domain.FieldKey) bool {
	i := indexOf(s.Active(), key)
	if i < 0 {
		return false
	}
	s.step = i
	return true
}

func clamp(i, n int) int {
	if i > n-1 {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
