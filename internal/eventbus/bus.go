package eventbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Rorical/streamchat/internal/models"
)

// UIEvent represents events sent from UI to Core
type UIEvent interface {
	UIEvent()
}

// CoreEvent represents events sent from Core to UI
type CoreEvent interface {
	CoreEvent()
}

// SubmitEvent - UI asks the controller to start a turn
type SubmitEvent struct {
	Prompt string
}

func (e SubmitEvent) UIEvent() {}

// CancelEvent - UI asks the controller to stop the in-flight turn
type CancelEvent struct{}

func (e CancelEvent) UIEvent() {}

// StateUpdateEvent - controller pushes a full snapshot after every transition.
// Messages is never mutated after publication.
type StateUpdateEvent struct {
	Messages          []models.Message
	AssistantThinking bool
	IsWriting         bool
	Error             error
}

func (e StateUpdateEvent) CoreEvent() {}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrCoreBusy    = errors.New("UI to Core channel is full")
)

const (
	defaultMaxFailures  uint32 = 5
	defaultResetTimeout        = 30 * time.Second
)

// EventBusError represents errors in event processing
type EventBusError struct {
	Operation string
	Err       error
	Timestamp time.Time
}

func (e EventBusError) Error() string {
	return e.Operation + ": " + e.Err.Error()
}

func (e EventBusError) Unwrap() error {
	return e.Err
}

// EventBus carries UI events to the controller and state snapshots back.
type EventBus struct {
	uiToCore       chan UIEvent
	coreToUI       chan CoreEvent
	errorCallback  func(EventBusError)
	circuitBreaker *gobreaker.CircuitBreaker[struct{}]
	closeOnce      sync.Once
}

func NewEventBus() *EventBus {
	return newEventBus(defaultMaxFailures, defaultResetTimeout)
}

// newEventBus trips the breaker after maxFailures consecutive refused events
// and lets one send through again after resetTimeout.
func newEventBus(maxFailures uint32, resetTimeout time.Duration) *EventBus {
	return &EventBus{
		uiToCore: make(chan UIEvent, 100),
		coreToUI: make(chan CoreEvent, 100),
		circuitBreaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "ui-to-core",
			MaxRequests: 1,
			Timeout:     resetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
		}),
	}
}

func (eb *EventBus) SetErrorCallback(callback func(EventBusError)) {
	eb.errorCallback = callback
}

func (eb *EventBus) reportError(operation string, err error) {
	if eb.errorCallback != nil {
		eb.errorCallback(EventBusError{
			Operation: operation,
			Err:       err,
			Timestamp: time.Now(),
		})
	}
}

// SendToCore never blocks the UI; a full queue is reported as an error and
// counts against the circuit breaker.
func (eb *EventBus) SendToCore(event UIEvent) error {
	_, err := eb.circuitBreaker.Execute(func() (struct{}, error) {
		select {
		case eb.uiToCore <- event:
			return struct{}{}, nil
		default:
			return struct{}{}, ErrCoreBusy
		}
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	if err != nil {
		eb.reportError("SendToCore", err)
	}
	return err
}

// SendToUI never blocks the controller. Every event is a full snapshot, so
// when the UI lags behind the oldest pending snapshot is dropped in favour
// of the new one. Only the controller's event loop may call SendToUI.
func (eb *EventBus) SendToUI(event CoreEvent) {
	for {
		select {
		case eb.coreToUI <- event:
			return
		default:
		}
		select {
		case <-eb.coreToUI:
		default:
		}
	}
}

func (eb *EventBus) UIToCore() <-chan UIEvent {
	return eb.uiToCore
}

func (eb *EventBus) CoreToUI() <-chan CoreEvent {
	return eb.coreToUI
}

func (eb *EventBus) GetCircuitBreakerState() gobreaker.State {
	return eb.circuitBreaker.State()
}

func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() {
		close(eb.uiToCore)
		close(eb.coreToUI)
	})
}
