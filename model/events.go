package model

import "strings"

// StandardEvent is a CMMN plan item lifecycle event an onPart can wait on.
type StandardEvent string

const (
	EventCreate          StandardEvent = "create"
	EventEnable          StandardEvent = "enable"
	EventDisable         StandardEvent = "disable"
	EventStart           StandardEvent = "start"
	EventManualStart     StandardEvent = "manualStart"
	EventComplete        StandardEvent = "complete"
	EventTerminate       StandardEvent = "terminate"
	EventExit            StandardEvent = "exit"
	EventParentTerminate StandardEvent = "parentTerminate"
	EventOccur           StandardEvent = "occur"
	EventSuspend         StandardEvent = "suspend"
	EventResume          StandardEvent = "resume"
	EventParentSuspend   StandardEvent = "parentSuspend"
	EventParentResume    StandardEvent = "parentResume"
	EventClose           StandardEvent = "close"
)

var standardEvents = []StandardEvent{
	EventCreate,
	EventEnable,
	EventDisable,
	EventStart,
	EventManualStart,
	EventComplete,
	EventTerminate,
	EventExit,
	EventParentTerminate,
	EventOccur,
	EventSuspend,
	EventResume,
	EventParentSuspend,
	EventParentResume,
	EventClose,
}

// StandardEvents returns every known standard event.
func StandardEvents() []StandardEvent {
	return append([]StandardEvent(nil), standardEvents...)
}

// ParseStandardEvent matches s against the known events, ignoring case.
func ParseStandardEvent(s string) (StandardEvent, bool) {
	s = strings.TrimSpace(s)
	for _, evt := range standardEvents {
		if strings.EqualFold(string(evt), s) {
			return evt, true
		}
	}
	return "", false
}

func (e StandardEvent) String() string { return string(e) }
