package ir

// EventKind names a lifecycle point of IR assembly.
type EventKind string

const (
	EventStart            EventKind = "ir:start"
	EventChapterAssembled EventKind = "chapter:assembled"
	EventSectionAssembled EventKind = "section:assembled"
	EventFinalized        EventKind = "ir:finalized"
)

// Event is passed to an Observer. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	DocTitle string
	Chapter  string
	Section  string
	Chapters int
	Sections int
}

// Observer receives progress events. It is called synchronously; a panic
// inside it is recovered and ignored.
type Observer func(Event)

// Observers fans one event out to several observers, isolating each one.
func Observers(obs ...Observer) Observer {
	return func(e Event) {
		for _, o := range obs {
			emit(o, e)
		}
	}
}

func emit(obs Observer, e Event) {
	if obs == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	obs(e)
}
