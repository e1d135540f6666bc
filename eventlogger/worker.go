package eventlogger

import (
	"context"
	"log/slog"
	"sync"
)

// Worker writes events to every sink from a single background goroutine.
// Log never blocks the caller; a full buffer drops the event.
type Worker struct {
	eventCh chan Event
	sinks   []Sink
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewWorker(bufferSize int, sinks ...Sink) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		eventCh: make(chan Event, bufferSize),
		sinks:   sinks,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Go(func() {
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining events before shutdown", "remaining_events", len(w.eventCh))
				for len(w.eventCh) > 0 {
					w.save(<-w.eventCh)
				}
				return
			case event := <-w.eventCh:
				w.save(event)
			}
		}
	})
}

// save runs on a background context: the worker's own context only signals
// shutdown, and an event already picked up must still reach every sink.
func (w *Worker) save(event Event) {
	ctx := context.Background()
	for _, sink := range w.sinks {
		if err := sink.Save(ctx, event); err != nil {
			slog.Error("failed to save event", "error", err, "event_type", event.Type)
		}
	}
}

func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
		// Event sent successfully
	default:
		// Channel is full, log the error
		slog.Warn("event channel full, dropping event", "event_type", event.Type)
	}
}

// Shutdown stops the worker after draining whatever is buffered. Events
// logged afterwards stay in the buffer and are never written.
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}
