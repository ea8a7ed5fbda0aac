package domain

// EventType is the closed set of planned event kinds.
type EventType string

const (
	EventSeminar EventType = "Seminar"
	EventMeeting EventType = "Meeting"
	EventPlan    EventType = "Plan"
)

// EventTypes lists every valid EventType in declaration order.
var EventTypes = []EventType{EventSeminar, EventMeeting, EventPlan}

func (t EventType) Valid() bool {
	switch t {
	case EventSeminar, EventMeeting, EventPlan:
		return true
	}
	return false
}

// DateLayout is the ISO date format used by PlannedEvent.Date.
const DateLayout = "2006-01-02"

// PlannedEvent is a single AI-generated timeboard entry.
type PlannedEvent struct {
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Type        EventType `json:"type"`
	Description string    `json:"description,omitempty"`
}

// EventTimeline is ordered newest batch first.
type EventTimeline []PlannedEvent

// Prepend returns a new timeline with batch ahead of the existing entries.
// Neither input is modified.
func (t EventTimeline) Prepend(batch []PlannedEvent) EventTimeline {
	out := make(EventTimeline, 0, len(batch)+len(t))
	out = append(out, batch...)
	out = append(out, t...)
	return out
}
