package components

// LifeState is the single boolean resource of the Game-of-Life rule set.
type LifeState struct {
	Alive bool `json:"life"`
}

// String renders the state as <1> or <0>.
func (s LifeState) String() string {
	if s.Alive {
		return "<1>"
	}
	return "<0>"
}
