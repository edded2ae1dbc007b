package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/hookrelay/hookrelay/delivery"
)

/* Explicit handler registry: a mapping from (event, action) to an
 * ordered list of handlers, built at startup and frozen for the process
 * lifetime. Replaces reflective handler discovery with plain lookup.
 */

// Handler consumes one persisted delivery.
type Handler interface {
	Handle(ctx context.Context, d delivery.Delivery) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, d delivery.Delivery) error

func (f HandlerFunc) Handle(ctx context.Context, d delivery.Delivery) error {
	return f(ctx, d)
}

type key struct {
	event  string
	action string
}

// Registry holds handler subscriptions. Register during startup, then
// Freeze; a frozen registry is immutable and safe for concurrent reads.
type Registry struct {
	handlers map[key][]Handler
	frozen   bool
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[key][]Handler),
	}
}

// Register subscribes a handler to an event and action. An empty action
// subscribes to every action of the event. Registering after Freeze is
// a programmer error and panics.
func (r *Registry) Register(event, action string, h Handler) {
	if r.frozen {
		panic(fmt.Sprintf("dispatch: register %q/%q after Freeze", event, action))
	}
	if event == "" {
		panic("dispatch: event must not be empty")
	}
	if h == nil {
		panic("dispatch: handler must not be nil")
	}
	k := key{event: event, action: action}
	r.handlers[k] = append(r.handlers[k], h)
}

// Freeze marks the registry immutable.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Resolve returns all handlers subscribed to (event, action): exact
// subscriptions first, then the event's catch-all subscriptions.
func (r *Registry) Resolve(event, action string) []Handler {
	var out []Handler
	if action != "" {
		out = append(out, r.handlers[key{event: event, action: action}]...)
	}
	out = append(out, r.handlers[key{event: event}]...)
	return out
}

// Router fans a delivery out to every resolved handler.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Route invokes each handler registered for the delivery's event name.
// Handlers run independently: one handler's failure does not prevent
// the others from running. Cancellation stops dispatching further
// handlers but does not abort one already in flight.
func (r *Router) Route(ctx context.Context, d delivery.Delivery) error {
	handlers := r.registry.Resolve(d.EventName.Event(), d.EventName.Action())

	var errs []error
	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := h.Handle(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("handling %s for delivery %s: %w", d.EventName, d.ID, err))
		}
	}
	return errors.Join(errs...)
}
