// Package notify delivers fire-and-forget events to interested users
// and to the thumbnail pipeline. Producers never block: events ride a
// bounded queue and are dropped with a warning when it is full.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"teamdrive/internal/domain/services"
)

// Event is a single notification in flight.
type Event struct {
	TargetUser string
	Kind       string
	Payload    map[string]string
	At         time.Time
}

// Sink receives events from the dispatcher. Implementations may fan
// out to websockets, email, or an external queue.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// ThumbnailRequester accepts render requests for visual content.
type ThumbnailRequester interface {
	Render(ctx context.Context, entityID, contentRef string) error
}

const defaultQueueSize = 256

// Dispatcher runs a single background worker draining the event queue.
type Dispatcher struct {
	sink    Sink
	thumbs  ThumbnailRequester
	queue   chan Event
	renders chan renderReq
	logger  *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type renderReq struct {
	entityID   string
	contentRef string
}

// NewDispatcher starts the worker. Call Close to drain and stop it.
func NewDispatcher(sink Sink, thumbs ThumbnailRequester, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		thumbs:  thumbs,
		queue:   make(chan Event, defaultQueueSize),
		renders: make(chan renderReq, defaultQueueSize),
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues an event without blocking. Full queue drops the event.
func (d *Dispatcher) Notify(targetUser, eventKind string, payload map[string]string) {
	ev := Event{TargetUser: targetUser, Kind: eventKind, Payload: payload, At: time.Now().UTC()}
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("notification queue full, dropping event",
			"target_user", targetUser, "kind", eventKind)
	}
}

// RequestThumbnail enqueues a render request without blocking.
func (d *Dispatcher) RequestThumbnail(entityID, contentRef string) {
	select {
	case d.renders <- renderReq{entityID: entityID, contentRef: contentRef}:
	default:
		d.logger.Warn("thumbnail queue full, dropping request", "entity_id", entityID)
	}
}

// Close stops the worker after draining queued events.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.stop)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case req := <-d.renders:
			d.render(req)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case req := <-d.renders:
			d.render(req)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	if d.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.sink.Deliver(ctx, ev); err != nil {
		d.logger.Warn("notification delivery failed",
			"target_user", ev.TargetUser, "kind", ev.Kind, "error", err)
	}
}

func (d *Dispatcher) render(req renderReq) {
	if d.thumbs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.thumbs.Render(ctx, req.entityID, req.contentRef); err != nil {
		d.logger.Warn("thumbnail request failed", "entity_id", req.entityID, "error", err)
	}
}

var _ services.Notifier = (*Dispatcher)(nil)
