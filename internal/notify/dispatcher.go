package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"kaptam/internal/domain"
	"kaptam/internal/events"
	"kaptam/internal/metrics"
	"kaptam/internal/models"

	"github.com/rs/zerolog"
)

// Dispatcher fans reservation events out to notifiers in the background.
// Delivery failures are logged and counted, never returned to the caller.
type Dispatcher struct {
	notifiers []domain.Notifier
	timeout   time.Duration
	logger    *zerolog.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, logger *zerolog.Logger, notifiers ...domain.Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{notifiers: notifiers, timeout: timeout, logger: logger}
}

// Len reports how many notifiers are configured.
func (d *Dispatcher) Len() int { return len(d.notifiers) }

// Subscribe hooks the dispatcher to created and updated events.
func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(d.handle, events.EventReservationCreated, events.EventReservationUpdated)
}

func (d *Dispatcher) handle(e *events.Event) error {
	var payload events.ReservationEventPayload
	if err := e.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	var r models.Reservation
	if err := json.Unmarshal(payload.Reservation, &r); err != nil {
		return fmt.Errorf("decode reservation %s: %w", payload.Code, err)
	}

	kind := KindCreated
	if e.Type == events.EventReservationUpdated {
		kind = KindUpdated
	}
	d.Dispatch(kind, &r)
	return nil
}

// Dispatch starts one goroutine per notifier and returns immediately.
func (d *Dispatcher) Dispatch(kind string, r *models.Reservation) {
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func(n domain.Notifier) {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := n.NotifyReservation(ctx, kind, r); err != nil {
				metrics.IncNotificationFailure(n.Name())
				d.logger.Error().Err(err).Str("channel", n.Name()).Str("code", r.Code).Msg("notification failed")
			}
		}(n)
	}
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
