package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionOpen       EventType = "session_open"
	EventSessionClose      EventType = "session_close"
	EventSessionCloseError EventType = "session_close_error"
	EventCloseScheduled    EventType = "close_scheduled"
	EventResultRegistered  EventType = "result_registered"
	EventResultReleased    EventType = "result_released"
	EventResultExhausted   EventType = "result_exhausted"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// SessionEvent describes a change in a session's ownership or lifetime.
type SessionEvent struct {
	EventBase
	ResultID ResultID      `json:"result_id,omitempty"`
	Policy   Policy        `json:"policy,omitempty"`
	Delay    time.Duration `json:"delay,omitempty"`
	Err      error         `json:"-"`
}

// NewSessionEvent stamps an event with the current time.
func NewSessionEvent(t EventType, id ResultID, policy Policy) *SessionEvent {
	return &SessionEvent{
		EventBase: EventBase{Timestamp: time.Now(), Type: t},
		ResultID:  id,
		Policy:    policy,
	}
}

// LifecycleHooks defines callbacks for session observability.
// Any field may be nil.
type LifecycleHooks struct {
	OnSessionOpen     func(context.Context, *SessionEvent)
	OnSessionClose    func(context.Context, *SessionEvent)
	OnCloseError      func(context.Context, *SessionEvent)
	OnCloseScheduled  func(context.Context, *SessionEvent)
	OnResultExhausted func(context.Context, *SessionEvent)
	OnResultReleased  func(context.Context, *SessionEvent)
}

// Emit calls fn with ev when fn is set.
func Emit(ctx context.Context, fn func(context.Context, *SessionEvent), ev *SessionEvent) {
	if fn != nil {
		fn(ctx, ev)
	}
}

// CombineHooks fans every callback out to all the given hooks, in order.
func CombineHooks(all ...LifecycleHooks) LifecycleHooks {
	fan := func(pick func(LifecycleHooks) func(context.Context, *SessionEvent)) func(context.Context, *SessionEvent) {
		var fns []func(context.Context, *SessionEvent)
		for _, h := range all {
			if fn := pick(h); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, ev *SessionEvent) {
			for _, fn := range fns {
				fn(ctx, ev)
			}
		}
	}
	return LifecycleHooks{
		OnSessionOpen:     fan(func(h LifecycleHooks) func(context.Context, *SessionEvent) { return h.OnSessionOpen }),
		OnSessionClose:    fan(func(h LifecycleHooks) func(context.Context, *SessionEvent) { return h.OnSessionClose }),
		OnCloseError:      fan(func(h LifecycleHooks) func(context.Context, *SessionEvent) { return h.OnCloseError }),
		OnCloseScheduled:  fan(func(h LifecycleHooks) func(context.Context, *SessionEvent) { return h.OnCloseScheduled }),
		OnResultExhausted: fan(func(h LifecycleHooks) func(context.Context, *SessionEvent) { return h.OnResultExhausted }),
		OnResultReleased:  fan(func(h LifecycleHooks) func(context.Context, *SessionEvent) { return h.OnResultReleased }),
	}
}
