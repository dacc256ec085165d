// Package event implements bramble's event registry: listener
// registration, priority-then-insertion ordering, and filtered broadcast
// dispatch (spec.md §4.5 "Event System").
//
// The registry has no equivalent in the teacher, which dispatches purely
// through class method lookup — event-driven pub/sub is bramble's
// replacement for inheritance-based polymorphism, so this package is
// built fresh rather than adapted from a teacher file. Its shape (a
// process-wide map of named buckets, a monotonic id/timestamp counter, a
// save/restore "current" pointer) follows the spec's prose directly.
package event

import (
	"fmt"

	"github.com/kristofer/bramble/pkg/value"
)

// Priority orders listeners within a bucket: higher values run first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// Filter is one compiled clause of an event's filter chain.
type Filter struct {
	Tag        string
	Comparison string // "", "==", "!=", "<", "<=", ">", ">="
	Value      value.RuntimeValue
	HasValue   bool
}

// ConditionFunc evaluates a listener's guard condition against the
// broadcast's event parameters. It is supplied by the VM, which alone
// knows how to run a compiled condition sub-chunk.
type ConditionFunc func(params map[string]value.RuntimeValue) (bool, error)

// HandlerFunc invokes a listener's handler body. It is supplied by the
// VM for the same reason as ConditionFunc.
type HandlerFunc func(params map[string]value.RuntimeValue, this value.RuntimeValue) error

// Listener is one registered event handler.
type Listener struct {
	EventName string
	Condition ConditionFunc
	Filters   []Filter
	Handler   HandlerFunc
	Owner     value.RuntimeValue // `this` at registration time, or Null
	Priority  Priority
	seq       int
}

// Data is the record built for each broadcast (spec: "EventData").
type Data struct {
	Name      string
	Params    map[string]value.RuntimeValue
	Source    value.RuntimeValue
	Timestamp int64
	ID        int64
	UI        bool
}

// Registry holds every bucket of listeners and the dispatch-scoped
// current-event pointer. It is not safe for concurrent use — the VM that
// owns it is explicitly single-threaded (spec §7 "Concurrency model").
type Registry struct {
	buckets map[string][]*Listener
	nextSeq int
	nextID  int64
	clock   int64

	current *Data

	// ProximityThreshold is the default distance the `near(obj)` filter
	// compares against, per spec ("Euclidean distance below a
	// host-configured threshold (default 10)").
	ProximityThreshold float64

	// DebugFlag backs the `debug(flag)` filter (spec: "the host's debug
	// flag").
	DebugFlag bool
}

// New creates an empty registry with the spec's default proximity
// threshold.
func New() *Registry {
	return &Registry{buckets: make(map[string][]*Listener), ProximityThreshold: 10}
}

// Register inserts l into its event bucket, maintaining priority-first,
// insertion-order-second ordering.
func (r *Registry) Register(l *Listener) {
	l.seq = r.nextSeq
	r.nextSeq++

	bucket := r.buckets[l.EventName]
	i := 0
	for i < len(bucket) && bucket[i].Priority >= l.Priority {
		i++
	}
	bucket = append(bucket, nil)
	copy(bucket[i+1:], bucket[i:])
	bucket[i] = l
	r.buckets[l.EventName] = bucket
}

// Current returns the event currently being dispatched, or nil outside
// of dispatch.
func (r *Registry) Current() *Data { return r.current }

// Broadcast builds an EventData record and dispatches it to every
// matching listener in the named bucket, depth-first and synchronously.
// onError receives per-listener condition/handler failures; dispatch
// always continues to the next listener (spec: "dispatch continues").
func (r *Registry) Broadcast(name string, params map[string]value.RuntimeValue, source value.RuntimeValue, onError func(error)) {
	r.nextID++
	r.clock++
	data := &Data{Name: name, Params: params, Source: source, Timestamp: r.clock, ID: r.nextID}

	prevCurrent := r.current
	r.current = data
	defer func() { r.current = prevCurrent }()

	for _, l := range r.buckets[name] {
		if l.Condition != nil {
			ok, err := l.Condition(params)
			if err != nil {
				onError(fmt.Errorf("event %q condition: %w", name, err))
				continue
			}
			if !ok {
				continue
			}
		}
		if !r.filtersMatch(l, params) {
			continue
		}
		if err := l.Handler(params, l.Owner); err != nil {
			onError(fmt.Errorf("event %q handler: %w", name, err))
		}
	}
}

func (r *Registry) filtersMatch(l *Listener, params map[string]value.RuntimeValue) bool {
	for _, f := range l.Filters {
		if !r.filterMatches(l, f, params) {
			return false
		}
	}
	return true
}

func (r *Registry) filterMatches(l *Listener, f Filter, params map[string]value.RuntimeValue) bool {
	owner := l.Owner

	switch f.Tag {
	case "all":
		return true
	case "priority":
		// Consumed at registration time; always matches at dispatch.
		return true
	case "ui":
		return r.current != nil && r.current.UI
	case "debug":
		return f.HasValue && f.Value.IsTruthy() == r.DebugFlag
	case "type", "role", "name":
		return ownerHas(owner, f.Tag, f)
	case "location":
		return ownerHas(owner, "location", f)
	case "target", "owner":
		arg, ok := params[f.Tag]
		return ok && f.HasValue && value.Equal(arg, f.Value)
	case "near":
		return r.nearMatches(owner, f)
	default:
		return ownerPropertyMatches(owner, f.Tag, f)
	}
}

func ownerHas(owner value.RuntimeValue, prop string, f Filter) bool {
	if owner.Kind != value.KindObject || !f.HasValue {
		return false
	}
	return value.Equal(owner.Object.Get(prop), f.Value)
}

func ownerPropertyMatches(owner value.RuntimeValue, prop string, f Filter) bool {
	if owner.Kind != value.KindObject || !f.HasValue {
		return false
	}
	actual := owner.Object.Get(prop)
	if f.Comparison == "" || f.Comparison == "==" {
		return value.Equal(actual, f.Value)
	}
	return compare(f.Comparison, actual, f.Value)
}

func (r *Registry) nearMatches(owner value.RuntimeValue, f Filter) bool {
	if owner.Kind != value.KindObject || !f.HasValue || f.Value.Kind != value.KindObject {
		return false
	}
	ox, oy := owner.Object.Get("x"), owner.Object.Get("y")
	tx, ty := f.Value.Object.Get("x"), f.Value.Object.Get("y")
	if ox.Kind != value.KindNumber || oy.Kind != value.KindNumber ||
		tx.Kind != value.KindNumber || ty.Kind != value.KindNumber {
		return false
	}
	dx, dy := ox.Number-tx.Number, oy.Number-ty.Number
	distSq := dx*dx + dy*dy
	return distSq < r.ProximityThreshold*r.ProximityThreshold
}

func compare(op string, a, b value.RuntimeValue) bool {
	if a.Kind != value.KindNumber || b.Kind != value.KindNumber {
		return false
	}
	switch op {
	case "!=":
		return a.Number != b.Number
	case "<":
		return a.Number < b.Number
	case "<=":
		return a.Number <= b.Number
	case ">":
		return a.Number > b.Number
	case ">=":
		return a.Number >= b.Number
	default:
		return a.Number == b.Number
	}
}
