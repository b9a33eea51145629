// Package notify delivers the terminal events of a recording session from
// the background worker to the goroutine that owns the caller.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Code is the kind of an asynchronous event. Its values never overlap with
// the synchronous statuses returned by the recorder (those stay below 100).
type Code uint

const (
	CodeUndefined    = Code(0)
	CodeWriteFailure = Code(101)
	CodeReadFailure  = Code(102)
	CodeFinished     = Code(103)
)

func (c Code) String() string {
	switch c {
	case CodeUndefined:
		return "undefined"
	case CodeWriteFailure:
		return "write_failure"
	case CodeReadFailure:
		return "read_failure"
	case CodeFinished:
		return "finished"
	}
	return fmt.Sprintf("unknown_%d", uint(c))
}

func (c Code) IsError() bool {
	return c == CodeWriteFailure || c == CodeReadFailure
}

type Event struct {
	Code          Code
	Err           error
	OutputPath    string
	BytesWritten  uint64
	FramesWritten uint64
}

const DefaultQueueSize = 16

// Channel is safe for concurrent use. Post never blocks.
type Channel struct {
	locker sync.Mutex
	events chan Event
	closed bool
}

func NewChannel(queueSize int) *Channel {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Channel{
		events: make(chan Event, queueSize),
	}
}

// Post returns false if the event was dropped because the queue is full
// or the channel is closed.
func (ch *Channel) Post(ctx context.Context, ev Event) bool {
	ch.locker.Lock()
	defer ch.locker.Unlock()
	if ch.closed {
		logger.Warnf(ctx, "the notification channel is closed, dropping %s event", ev.Code)
		return false
	}
	select {
	case ch.events <- ev:
		logger.Debugf(ctx, "posted %s event", ev.Code)
		return true
	default:
		logger.Errorf(ctx, "the notification queue is full, dropping %s event", ev.Code)
		return false
	}
}

func (ch *Channel) Events() <-chan Event {
	return ch.events
}

func (ch *Channel) Close() error {
	ch.locker.Lock()
	defer ch.locker.Unlock()
	if ch.closed {
		return nil
	}
	ch.closed = true
	close(ch.events)
	return nil
}

type Listener interface {
	OnRecordError(Event)
	OnRecordFinish(Event)
}

type ListenerFuncs struct {
	OnRecordErrorFunc  func(Event)
	OnRecordFinishFunc func(Event)
}

var _ Listener = ListenerFuncs{}

func (l ListenerFuncs) OnRecordError(ev Event) {
	if l.OnRecordErrorFunc != nil {
		l.OnRecordErrorFunc(ev)
	}
}

func (l ListenerFuncs) OnRecordFinish(ev Event) {
	if l.OnRecordFinishFunc != nil {
		l.OnRecordFinishFunc(ev)
	}
}

// Deliver invokes the listener callback matching the event code.
func Deliver(ctx context.Context, l Listener, ev Event) {
	switch {
	case ev.Code.IsError():
		l.OnRecordError(ev)
	case ev.Code == CodeFinished:
		l.OnRecordFinish(ev)
	default:
		logger.Warnf(ctx, "ignoring event with code %s", ev.Code)
	}
}

// Dispatch invokes the listener for every event on the calling goroutine
// until ctx is done or the channel is closed.
func Dispatch(ctx context.Context, ch *Channel, l Listener) error {
	logger.Tracef(ctx, "Dispatch")
	defer logger.Tracef(ctx, "/Dispatch")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch.Events():
			if !ok {
				return nil
			}
			Deliver(ctx, l, ev)
		}
	}
}

// DispatchPending delivers the already queued events without blocking.
// It suits callers that own an event loop and poll from it.
func DispatchPending(ctx context.Context, ch *Channel, l Listener) int {
	count := 0
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				return count
			}
			Deliver(ctx, l, ev)
			count++
		default:
			return count
		}
	}
}
