package agents

import (
	"math/rand"
	"slices"

	"github.com/talgya/tilesim/internal/world"
)

// ActionKind enumerates the actions a character can draw.
type ActionKind uint8

const (
	ActionMove ActionKind = iota
	ActionStandby
	ActionTrain
	ActionRecover
	ActionLearnSkill
	ActionFight
	ActionEscape
	ActionSearch
)

var actionNames = map[ActionKind]string{
	ActionMove: "move", ActionStandby: "standby", ActionTrain: "train", ActionRecover: "recover",
	ActionLearnSkill: "learn_skill", ActionFight: "fight", ActionEscape: "escape", ActionSearch: "search",
}

func (k ActionKind) String() string { return actionNames[k] }

// StateKind enumerates the action states.
type StateKind uint8

const (
	StateBasic StateKind = iota
	StateBasicMob
	StateCombat
	StateFindItem
)

func (k StateKind) String() string {
	switch k {
	case StateBasicMob:
		return "basic_mob"
	case StateCombat:
		return "combat"
	case StateFindItem:
		return "find_item"
	}
	return "basic"
}

// ModifyMode is how Modify combines a value with a menu weight.
type ModifyMode uint8

const (
	ModifyFixed    ModifyMode = iota // replace the weight
	ModifyMultiply                   // scale the weight
)

// Weight is one menu entry.
type Weight struct {
	Kind   ActionKind `json:"kind"`
	Weight float64    `json:"weight"`
}

// ActionState is a character's active mode: a base menu, the menu as
// modified by the current goal, and the mode-specific data.
type ActionState struct {
	Kind     StateKind
	base     []Weight
	menu     []Weight
	CombatID world.EventID // StateCombat only
	Attempts int           // StateFindItem only: searches left
}

func newActionState(kind StateKind, base []Weight) *ActionState {
	return &ActionState{Kind: kind, base: base, menu: slices.Clone(base)}
}

// NewBasicState is the default state of playable races.
func NewBasicState() *ActionState {
	return newActionState(StateBasic, []Weight{
		{ActionMove, 50}, {ActionStandby, 30}, {ActionTrain, 20}, {ActionRecover, 0}, {ActionLearnSkill, 0},
	})
}

// NewBasicMobState is the default state of mobs.
func NewBasicMobState() *ActionState {
	return newActionState(StateBasicMob, []Weight{{ActionMove, 60}, {ActionStandby, 40}})
}

// NewCombatState binds the character to combat event id.
func NewCombatState(id world.EventID) *ActionState {
	s := newActionState(StateCombat, []Weight{{ActionFight, 50}, {ActionEscape, 50}})
	s.CombatID = id
	return s
}

// NewFindItemState searches the current tile up to attempts times.
func NewFindItemState(attempts int) *ActionState {
	s := newActionState(StateFindItem, []Weight{{ActionSearch, 80}, {ActionMove, 20}})
	s.Attempts = attempts
	return s
}

// NewState builds the default state of the given kind.
func NewState(kind StateKind) *ActionState {
	if kind == StateBasicMob {
		return NewBasicMobState()
	}
	return NewBasicState()
}

// Has reports whether k is on the menu.
func (s *ActionState) Has(k ActionKind) bool {
	return slices.ContainsFunc(s.menu, func(w Weight) bool { return w.Kind == k })
}

// Modify changes the weight of k. It reports false when k is not on the
// menu.
func (s *ActionState) Modify(k ActionKind, value float64, mode ModifyMode) bool {
	for i := range s.menu {
		if s.menu[i].Kind != k {
			continue
		}
		if mode == ModifyMultiply {
			s.menu[i].Weight *= value
		} else {
			s.menu[i].Weight = value
		}
		return true
	}
	return false
}

// ResetProbabilities restores the base menu.
func (s *ActionState) ResetProbabilities() { s.menu = slices.Clone(s.base) }

// Menu returns the modified menu with combat re-weighting for a character
// at health ratio hr with the given escape threshold.
func (s *ActionState) Menu(hr, escapeThreshold float64) []Weight {
	out := slices.Clone(s.menu)
	if s.Kind != StateCombat || hr >= escapeThreshold {
		return out
	}
	fight := 100 * hr / 2
	for i := range out {
		switch out[i].Kind {
		case ActionFight:
			out[i].Weight = fight
		case ActionEscape:
			out[i].Weight = 100 - fight
		}
	}
	return out
}

// Draw picks an action from menu by weight. With no positive weight the
// first entry is returned.
func Draw(menu []Weight, rng *rand.Rand) ActionKind {
	total := 0.0
	for _, w := range menu {
		if w.Weight > 0 {
			total += w.Weight
		}
	}
	if total <= 0 {
		return menu[0].Kind
	}
	r := rng.Float64() * total
	for _, w := range menu {
		if w.Weight <= 0 {
			continue
		}
		if r < w.Weight {
			return w.Kind
		}
		r -= w.Weight
	}
	return menu[len(menu)-1].Kind
}

// Behavior sets when a character prefers escaping over fighting.
type Behavior uint8

const (
	BehaviorDefault Behavior = iota
	BehaviorAggressive
	BehaviorPassive
)

// EscapeThreshold is the health ratio below which escape is favoured.
func (b Behavior) EscapeThreshold() float64 {
	switch b {
	case BehaviorAggressive:
		return 0.1
	case BehaviorPassive:
		return 0.4
	}
	return 0.25
}

func (b Behavior) String() string {
	switch b {
	case BehaviorAggressive:
		return "aggressive"
	case BehaviorPassive:
		return "passive"
	}
	return "default"
}
