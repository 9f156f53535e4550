package counting

import (
	"image"

	"github.com/pkg/errors"
)

// ErrSelectionCancelled is returned when user quits line selection.
// Caller should exit without running a session: this is a user decision, not a failure.
var ErrSelectionCancelled = errors.New("line selection cancelled")

// CommandKind enumerates interactive commands abstracted from raw input events
type CommandKind uint8

const (
	// CommandNone means no input during the poll
	CommandNone CommandKind = iota
	// CommandClick records a point during selection
	CommandClick
	// CommandConfirm confirms selection when exactly two points are present
	CommandConfirm
	// CommandResetSelection discards recorded points
	CommandResetSelection
	// CommandQuitSelection cancels selection
	CommandQuitSelection
	// CommandQuitSession stops processing loop
	CommandQuitSession
	// CommandResetSession zeroes counters and forgets tracks
	CommandResetSession
)

func (kind CommandKind) String() string {
	switch kind {
	case CommandNone:
		return "none"
	case CommandClick:
		return "click"
	case CommandConfirm:
		return "confirm"
	case CommandResetSelection:
		return "reset-selection"
	case CommandQuitSelection:
		return "quit-selection"
	case CommandQuitSession:
		return "quit-session"
	case CommandResetSession:
		return "reset-session"
	default:
		return "unknown"
	}
}

// Command is a single discrete input. Point is meaningful for CommandClick only.
type Command struct {
	Kind  CommandKind
	Point image.Point
}

// Click creates click command
func Click(x, y int) Command {
	return Command{Kind: CommandClick, Point: image.Pt(x, y)}
}

// SelectionPhase is the state of line selection protocol
type SelectionPhase uint8

const (
	SelectionEmpty SelectionPhase = iota
	SelectionOnePoint
	SelectionTwoPoints
	SelectionConfirmed
	SelectionCancelled
)

func (phase SelectionPhase) String() string {
	switch phase {
	case SelectionEmpty:
		return "empty"
	case SelectionOnePoint:
		return "one-point"
	case SelectionTwoPoints:
		return "two-points"
	case SelectionConfirmed:
		return "confirmed"
	case SelectionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SelectionState is an immutable value describing progress of line selection.
// Zero value is the Empty state.
type SelectionState struct {
	points [2]image.Point
	count  int
	phase  SelectionPhase
	line   Line
}

// Phase returns current phase
func (state SelectionState) Phase() SelectionPhase {
	return state.phase
}

// Points returns recorded points (zero, one or two)
func (state SelectionState) Points() []image.Point {
	points := make([]image.Point, state.count)
	copy(points, state.points[:state.count])
	return points
}

// Line returns confirmed line. Second value is false unless selection is confirmed.
func (state SelectionState) Line() (Line, bool) {
	if state.phase != SelectionConfirmed {
		return Line{}, false
	}
	return state.line, true
}

// Done reports whether selection reached a terminal phase
func (state SelectionState) Done() bool {
	return state.phase == SelectionConfirmed || state.phase == SelectionCancelled
}

// Apply returns the state after the command. Terminal states ignore every command.
func (state SelectionState) Apply(cmd Command) SelectionState {
	if state.Done() {
		return state
	}
	switch cmd.Kind {
	case CommandClick:
		if state.count >= 2 {
			return state
		}
		state.points[state.count] = cmd.Point
		state.count++
		if state.count == 1 {
			state.phase = SelectionOnePoint
		} else {
			state.phase = SelectionTwoPoints
		}
	case CommandConfirm:
		if state.count != 2 {
			return state
		}
		state.line = NewLineFromPoints(state.points[0], state.points[1])
		state.phase = SelectionConfirmed
	case CommandResetSelection:
		return SelectionState{}
	case CommandQuitSelection, CommandQuitSession:
		state.phase = SelectionCancelled
	}
	return state
}

// SelectionInput feeds selection commands. Implementations typically render
// the preview frame with the current state before waiting for the next input.
type SelectionInput interface {
	NextCommand(state SelectionState) (Command, error)
}

// SelectLine drives selection protocol until confirmation or cancellation.
// Returns ErrSelectionCancelled on quit.
func SelectLine(input SelectionInput) (Line, error) {
	state := SelectionState{}
	for !state.Done() {
		cmd, err := input.NextCommand(state)
		if err != nil {
			return Line{}, errors.Wrap(err, "can't read selection input")
		}
		state = state.Apply(cmd)
	}
	line, ok := state.Line()
	if !ok {
		return Line{}, ErrSelectionCancelled
	}
	return line, nil
}

// PresetInput replays a fixed command list. When commands run out selection is cancelled.
type PresetInput struct {
	commands []Command
}

// NewPresetInput creates input which clicks two points and confirms
func NewPresetInput(p1, p2 image.Point) *PresetInput {
	return &PresetInput{
		commands: []Command{Click(p1.X, p1.Y), Click(p2.X, p2.Y), {Kind: CommandConfirm}},
	}
}

// NewCommandInput creates input replaying given commands
func NewCommandInput(commands ...Command) *PresetInput {
	return &PresetInput{commands: commands}
}

// NextCommand implements SelectionInput
func (input *PresetInput) NextCommand(SelectionState) (Command, error) {
	if len(input.commands) == 0 {
		return Command{Kind: CommandQuitSelection}, nil
	}
	cmd := input.commands[0]
	input.commands = input.commands[1:]
	return cmd, nil
}
