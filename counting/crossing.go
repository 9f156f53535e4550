package counting

// Direction of line crossing
type Direction uint8

const (
	// NoCrossing means centroid did not pass the line between observations
	NoCrossing Direction = iota
	// DirectionIn is left-to-right crossing
	DirectionIn
	// DirectionOut is right-to-left crossing
	DirectionOut
)

func (direction Direction) String() string {
	switch direction {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "NONE"
	}
}

// Classify decides whether move from prevCX to currCX crosses the line.
// The rule is asymmetric: starting exactly on the line never counts.
func Classify(prevCX, currCX int, line Line) Direction {
	if prevCX < line.X && currCX >= line.X {
		return DirectionIn
	}
	if prevCX > line.X && currCX <= line.X {
		return DirectionOut
	}
	return NoCrossing
}
