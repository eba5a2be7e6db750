// Package watch implements the long-lived streaming side of the client: a
// reconnecting watch loop that decodes newline-delimited JSON events,
// tracks the resume cursor, and delivers events to a caller-supplied sink
// until cancelled or out of retry budget.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/atomic"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/kubewire/kubewire/pkg/apierrors"
	"github.com/kubewire/kubewire/pkg/metrics"
)

// EventType tags a delivered watch event.
type EventType string

const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
	Bookmark EventType = "BOOKMARK"

	rawError = "ERROR"
)

// Event is one decoded resource change. Bookmark events carry an object
// whose only populated field is the resource version.
type Event[T any] struct {
	Type   EventType
	Object *T
}

// Sink receives events and errors from one watch task. A task invokes its
// sink from a single goroutine, so implementations need no internal
// synchronization unless they share state across tasks.
type Sink[T any] interface {
	OnEvent(Event[T])
	OnError(error)
}

type funcSink[T any] struct {
	fn func(Event[T])
}

func (s funcSink[T]) OnEvent(e Event[T]) { s.fn(e) }
func (s funcSink[T]) OnError(err error)  { klog.Warningf("watch error suppressed: %v", err) }

// SinkOf adapts an event-only callback into a Sink; errors are logged and
// suppressed.
func SinkOf[T any](fn func(Event[T])) Sink[T] {
	return funcSink[T]{fn: fn}
}

// State is the lifecycle phase of a watch task.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateReconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateStreaming:
		return "Streaming"
	case StateReconnecting:
		return "Reconnecting"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ConnectFunc opens one watch stream, resuming from resourceVersion when it
// is non-empty. The returned body is a chunked newline-delimited JSON event
// stream.
type ConnectFunc func(ctx context.Context, resourceVersion string) (io.ReadCloser, error)

// Options tune one watch task.
type Options struct {
	// Name labels the task in logs.
	Name string
	// InitialResourceVersion seeds the resume cursor.
	InitialResourceVersion string
	// ForwardBookmarks delivers bookmark events to the sink instead of only
	// recording the cursor.
	ForwardBookmarks bool
	// Clock times the backoff sleeps; it defaults to the real clock.
	Clock clock.Clock
}

// Task is the cancellable handle returned by a watch call. Stop is
// idempotent and may be called from any goroutine.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	state    atomic.Int32
	attempts atomic.Int32
	lastRV   atomic.String
	err      atomic.Error
}

// Stop cancels the task: the active stream is aborted, no reconnect is
// attempted, and no further events are delivered.
func (t *Task) Stop() { t.cancel() }

// Done closes when the task reaches the terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err reports why the task terminated: nil while running, a Cancelled error
// after Stop, or the terminal failure.
func (t *Task) Err() error { return t.err.Load() }

// State returns the task's current lifecycle phase.
func (t *Task) State() State { return State(t.state.Load()) }

// Attempts returns the current reconnect attempt counter. It resets to zero
// on every successfully delivered event.
func (t *Task) Attempts() int { return int(t.attempts.Load()) }

// LastResourceVersion returns the current resume cursor.
func (t *Task) LastResourceVersion() string { return t.lastRV.Load() }

func (t *Task) finish(err error) {
	t.err.Store(err)
	t.state.Store(int32(StateTerminated))
}

// Run starts a watch task. It returns immediately; event delivery happens
// asynchronously on the task's own goroutine.
func Run[T any](ctx context.Context, connect ConnectFunc, strategy RetryStrategy, sink Sink[T], opts Options) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	t.lastRV.Store(opts.InitialResourceVersion)

	cl := opts.Clock
	if cl == nil {
		cl = clock.RealClock{}
	}
	name := opts.Name
	if name == "" {
		name = "watch"
	}

	go runLoop(ctx, t, name, connect, strategy, sink, opts.ForwardBookmarks, cl)
	return t
}

func runLoop[T any](ctx context.Context, t *Task, name string, connect ConnectFunc, strategy RetryStrategy, sink Sink[T], forwardBookmarks bool, cl clock.Clock) {
	defer close(t.done)

	attempt := 0
	var lastErr error

	for {
		if ctx.Err() != nil {
			t.finish(apierrors.NewCancelled(ctx.Err()))
			return
		}

		t.state.Store(int32(StateConnecting))
		delivered := 0
		body, err := connect(ctx, t.lastRV.Load())
		if err == nil {
			t.state.Store(int32(StateStreaming))
			delivered, err = streamEvents(ctx, t, body, sink, forwardBookmarks)
		}
		if delivered > 0 {
			// The segment made progress, so the budget tracks only
			// consecutive failures from here.
			attempt = 0
		}

		switch {
		case err == nil:
			// Server closed the stream cleanly; resume from the cursor.
			klog.V(4).Infof("%s: stream closed cleanly, reconnecting from %q", name, t.lastRV.Load())
			lastErr = nil
		case apierrors.IsCancelled(err) || ctx.Err() != nil:
			t.finish(apierrors.NewCancelled(ctx.Err()))
			return
		case apierrors.IsGone(err):
			// The resume token expired. Reconnect from empty; callers are
			// expected to re-list.
			klog.V(2).Infof("%s: resume token expired (410), restarting from empty cursor", name)
			t.lastRV.Store("")
			lastErr = err
		case apierrors.IsRetryable(err):
			klog.V(2).Infof("%s: stream failed, will reconnect: %v", name, err)
			sink.OnError(err)
			lastErr = err
		default:
			sink.OnError(err)
			t.finish(err)
			return
		}

		attempt++
		if !strategy.Policy.allows(attempt) {
			if lastErr == nil {
				lastErr = errors.New("server kept closing the stream")
			}
			terminal := fmt.Errorf("%s: retry budget exhausted after %d attempts: %w", name, attempt-1, lastErr)
			sink.OnError(terminal)
			t.finish(terminal)
			return
		}
		t.attempts.Store(int32(attempt))
		t.state.Store(int32(StateReconnecting))
		metrics.ObserveWatchReconnect()

		delay := strategy.jittered(strategy.delayFor(attempt))
		timer := cl.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.finish(apierrors.NewCancelled(ctx.Err()))
			return
		case <-timer.C():
		}
	}
}

// streamEvents drains one stream segment, delivering events in server order,
// and reports how many events it processed. A nil error means the server
// closed the stream cleanly.
func streamEvents[T any](ctx context.Context, t *Task, body io.ReadCloser, sink Sink[T], forwardBookmarks bool) (int, error) {
	dec := newStreamDecoder(body)
	defer dec.Close()

	// Closing the body is the only way to abort a blocked decode.
	readCtx, stopReader := context.WithCancel(ctx)
	defer stopReader()
	go func() {
		<-readCtx.Done()
		dec.Close()
	}()

	delivered := 0
	for {
		raw, err := dec.next()
		if err != nil {
			if ctx.Err() != nil {
				return delivered, apierrors.NewCancelled(ctx.Err())
			}
			if errors.Is(err, io.EOF) {
				return delivered, nil
			}
			// A syntactically broken event is a protocol violation, not a
			// torn connection; it must not trigger a reconnect.
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				return delivered, apierrors.NewMalformedResponse(err, nil)
			}
			return delivered, apierrors.NewTransportError(err)
		}

		switch string(raw.Type) {
		case rawError:
			status := &metav1.Status{}
			if err := json.Unmarshal(raw.Object.Raw, status); err != nil || status.Kind != "Status" {
				return delivered, apierrors.NewMalformedResponse(fmt.Errorf("watch ERROR event without a Status object"), raw.Object.Raw)
			}
			return delivered, apierrors.FromStatus(status)

		case string(Bookmark):
			if rv := resourceVersionOf(raw.Object.Raw); rv != "" {
				t.lastRV.Store(rv)
			}
			delivered++
			t.attempts.Store(0)
			metrics.ObserveWatchEvent(string(Bookmark))
			if forwardBookmarks {
				obj, err := decodeObject[T](raw.Object.Raw)
				if err != nil {
					return delivered, err
				}
				sink.OnEvent(Event[T]{Type: Bookmark, Object: obj})
			}

		case string(Added), string(Modified), string(Deleted):
			obj, err := decodeObject[T](raw.Object.Raw)
			if err != nil {
				return delivered, err
			}
			if rv := resourceVersionOf(raw.Object.Raw); rv != "" {
				t.lastRV.Store(rv)
			}
			delivered++
			t.attempts.Store(0)
			metrics.ObserveWatchEvent(string(raw.Type))
			sink.OnEvent(Event[T]{Type: EventType(raw.Type), Object: obj})

		default:
			return delivered, apierrors.NewMalformedResponse(fmt.Errorf("unknown watch event type %q", raw.Type), raw.Object.Raw)
		}
	}
}

func decodeObject[T any](raw []byte) (*T, error) {
	obj := new(T)
	if err := json.Unmarshal(raw, obj); err != nil {
		return nil, apierrors.NewMalformedResponse(err, raw)
	}
	return obj, nil
}
