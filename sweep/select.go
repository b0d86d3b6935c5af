package sweep

// Ceilings bound the false-positive burden tolerated at the selected
// threshold. A zero field disables that constraint.
type Ceilings struct {
	FPSPerHour    float64 `json:"fps_per_hour"`
	FPTimePerHour float64 `json:"fp_time_per_hour"`
}

// Active reports whether any ceiling is set.
func (c Ceilings) Active() bool {
	return c.FPSPerHour > 0 || c.FPTimePerHour > 0
}

// Reason records how a threshold was chosen.
type Reason string

const (
	ReasonExplicit      Reason = "explicit"
	ReasonDefault       Reason = "default"
	ReasonCeiling       Reason = "ceiling"
	ReasonFloor         Reason = "floor"
	ReasonUnsatisfiable Reason = "unsatisfiable"
)

// Selection is the chosen operating point.
type Selection struct {
	Index     int     `json:"index"`
	Threshold float64 `json:"threshold"`
	Reason    Reason  `json:"reason"`
}

// Select scans the grid from the most conservative threshold downward and
// keeps the lowest index whose rates all stay within c, never going below
// FloorIndex. When even the most conservative threshold violates c the
// floor threshold is returned with ReasonUnsatisfiable.
func (r *Result) Select(c Ceilings) Selection {
	floor := min(FloorIndex, len(r.Thresholds)-1)
	last := len(r.Thresholds) - 1
	if last < 0 {
		return Selection{Index: -1, Reason: ReasonUnsatisfiable}
	}
	if r.exceeds(last, c) {
		return Selection{Index: floor, Threshold: r.Thresholds[floor], Reason: ReasonUnsatisfiable}
	}

	idx := last
	for idx > floor && !r.exceeds(idx-1, c) {
		idx--
	}
	reason := ReasonCeiling
	if idx == floor {
		reason = ReasonFloor
	}
	return Selection{Index: idx, Threshold: r.Thresholds[idx], Reason: reason}
}

func (r *Result) exceeds(t int, c Ceilings) bool {
	if c.FPSPerHour > 0 && r.FPSPerHour[t] > c.FPSPerHour {
		return true
	}
	if c.FPTimePerHour > 0 && r.FPTimePerHour[t] > c.FPTimePerHour {
		return true
	}
	return false
}
