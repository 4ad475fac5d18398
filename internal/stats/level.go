package stats

// Curve is an exponential experience curve: the exp needed to leave level n
// is Base × 2^n.
type Curve struct {
	Base int
}

// Required returns the exp needed to advance from level.
func (c Curve) Required(level int) int {
	return c.Base << uint(level)
}

// Level tracks the level and the exp accumulated toward the next one.
type Level struct {
	Current int `json:"level"`
	Exp     int `json:"exp"`
	curve   Curve
}

// NewLevel starts at level with no exp.
func NewLevel(c Curve, level int) Level {
	return Level{Current: level, curve: c}
}

// Next returns the exp needed for the next level.
func (l *Level) Next() int { return l.curve.Required(l.Current) }

// AddExp adds exp and returns how many levels were gained. The remainder
// carries over.
func (l *Level) AddExp(exp int) int {
	if exp <= 0 || l.curve.Base <= 0 {
		return 0
	}
	gained := 0
	l.Exp += exp
	for l.Exp >= l.Next() {
		l.Exp -= l.Next()
		l.Current++
		gained++
	}
	return gained
}
