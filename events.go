package syntax

// Event is an interface that represents a highlight event.
// Possible implementations are:
// - [EventStart]
// - [EventEnd]
// - [EventSource]
type Event interface {
	highlightEvent()
}

// EventSource is emitted for the text between two highlight boundaries.
type EventSource struct {
	Start uint
	End   uint
}

func (EventSource) highlightEvent() {}

// EventStart is emitted when a highlight region starts.
type EventStart struct {
	Pos       uint
	Highlight Highlight
	// Capture is the capture name the highlight was resolved from.
	Capture  string
	Language string
	Layer    LayerID
	NodeID   uintptr
}

func (EventStart) highlightEvent() {}

// EventEnd is emitted when the innermost open highlight region ends.
type EventEnd struct {
	Pos       uint
	Highlight Highlight
	Capture   string
	NodeID    uintptr
}

func (EventEnd) highlightEvent() {}
