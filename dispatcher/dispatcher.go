// Package dispatcher implements the in-process event bus that decouples
// the UI and installer from the database service. Registration and
// dispatch are synchronous; subscribers for an (event, namespace) pair
// run in the exact order they were registered.
package dispatcher

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler is a subscriber callback. The returned value is published in
// the dispatch Results under the subscription's label; a non-nil error
// is logged and suppresses the entry.
type Handler func(Event) (any, error)

// Subscription describes a single registration. Label is the key the
// handler's result appears under in Results; when empty the registration
// id is used, which guarantees collision-free result keys.
type Subscription struct {
	Event      string
	Namespace  string
	Label      string
	Persistent bool
	Handler    Handler
}

type entry struct {
	id         string
	label      string
	persistent bool
	handler    Handler
}

// Dispatcher owns the subscription table. Create one with New and pass
// it to every component that publishes or subscribes; there is no
// process-wide instance. Safe for use from multiple goroutines, and a
// handler may register, unregister or dispatch reentrantly.
type Dispatcher struct {
	mu   sync.Mutex
	subs map[string]map[string][]*entry // event -> namespace -> ordered subscribers
	log  *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		subs: make(map[string]map[string][]*entry),
		log:  log,
	}
}

// Register appends a subscription and returns its freshly generated
// registration id. Ids are never reused. Registering the same handler
// twice yields two independent subscriptions; no duplicate detection is
// performed.
func (d *Dispatcher) Register(sub Subscription) string {
	id := uuid.NewString()
	e := &entry{
		id:         id,
		label:      sub.Label,
		persistent: sub.Persistent,
		handler:    sub.Handler,
	}
	if e.label == "" {
		e.label = id
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	byNS, ok := d.subs[sub.Event]
	if !ok {
		byNS = make(map[string][]*entry)
		d.subs[sub.Event] = byNS
	}
	byNS[sub.Namespace] = append(byNS[sub.Namespace], e)
	return id
}

// RegisterAll registers every subscription in order and returns the ids.
func (d *Dispatcher) RegisterAll(subs []Subscription) []string {
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, d.Register(sub))
	}
	return ids
}

// Unregister removes the subscription with the given id, scanning the
// whole table, and reports whether it was found. Unknown ids leave the
// table untouched.
func (d *Dispatcher) Unregister(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removeLocked(id)
}

// UnregisterAll removes every id it can find and returns how many were
// removed.
func (d *Dispatcher) UnregisterAll(ids []string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if d.removeLocked(id) {
			removed++
		}
	}
	return removed
}

func (d *Dispatcher) removeLocked(id string) bool {
	for event, byNS := range d.subs {
		for ns, list := range byNS {
			for i, e := range list {
				if e.id != id {
					continue
				}
				byNS[ns] = append(list[:i], list[i+1:]...)
				if len(byNS[ns]) == 0 {
					delete(byNS, ns)
				}
				if len(byNS) == 0 {
					delete(d.subs, event)
				}
				return true
			}
		}
	}
	return false
}

// Dispatch invokes every subscriber of (event, namespace) synchronously
// in registration order and returns their results keyed by label. With
// no subscribers it returns an empty map; it never returns an error and
// never panics. A failing or panicking handler is logged and skipped in
// the results, and the fan-out continues. Non-persistent subscriptions
// are collected during the loop and removed only after it completes, so
// every one-shot subscriber still sees the event that consumed it.
func (d *Dispatcher) Dispatch(event, namespace string, payload Payload) Results {
	d.mu.Lock()
	var snapshot []*entry
	if byNS, ok := d.subs[event]; ok {
		if list, ok := byNS[namespace]; ok && len(list) > 0 {
			snapshot = make([]*entry, len(list))
			copy(snapshot, list)
		}
	}
	d.mu.Unlock()

	results := make(Results, len(snapshot))
	if len(snapshot) == 0 {
		return results
	}

	ev := Event{Name: event, Namespace: namespace, Payload: payload}
	var spent []string
	for _, e := range snapshot {
		value, err := invoke(e.handler, ev)
		if err != nil {
			d.log.Errorw("Subscriber failed during dispatch",
				zap.String("event", event),
				zap.String("namespace", namespace),
				zap.String("label", e.label),
				zap.Error(err),
			)
		} else {
			results[e.label] = value
		}
		if !e.persistent {
			spent = append(spent, e.id)
		}
	}

	// One-shot subscriptions leave the table after the full fan-out,
	// even when their handler failed. A handler that already
	// unregistered itself makes this a no-op.
	for _, id := range spent {
		d.Unregister(id)
	}
	return results
}

// invoke shields the dispatch loop from a panicking handler.
func invoke(h Handler, ev Event) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return h(ev)
}

// HasSubscribers reports whether at least one subscription exists for
// the (event, namespace) pair.
func (d *Dispatcher) HasSubscribers(event, namespace string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	byNS, ok := d.subs[event]
	if !ok {
		return false
	}
	return len(byNS[namespace]) > 0
}

// Count returns the total number of live subscriptions.
func (d *Dispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := 0
	for _, byNS := range d.subs {
		for _, list := range byNS {
			total += len(list)
		}
	}
	return total
}
