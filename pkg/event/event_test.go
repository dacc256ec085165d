package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/bramble/pkg/value"
)

func noopHandler(calls *[]string, name string) HandlerFunc {
	return func(params map[string]value.RuntimeValue, this value.RuntimeValue) error {
		*calls = append(*calls, name)
		return nil
	}
}

func TestRegister_OrdersHighPriorityFirst(t *testing.T) {
	r := New()
	var calls []string
	r.Register(&Listener{EventName: "Hit", Priority: PriorityLow, Handler: noopHandler(&calls, "low")})
	r.Register(&Listener{EventName: "Hit", Priority: PriorityHigh, Handler: noopHandler(&calls, "high")})
	r.Register(&Listener{EventName: "Hit", Priority: PriorityMedium, Handler: noopHandler(&calls, "medium")})

	r.Broadcast("Hit", nil, value.Null(), func(err error) { t.Fatal(err) })
	assert.Equal(t, []string{"high", "medium", "low"}, calls)
}

func TestRegister_TiesBreakByInsertionOrder(t *testing.T) {
	r := New()
	var calls []string
	r.Register(&Listener{EventName: "Hit", Priority: PriorityMedium, Handler: noopHandler(&calls, "first")})
	r.Register(&Listener{EventName: "Hit", Priority: PriorityMedium, Handler: noopHandler(&calls, "second")})

	r.Broadcast("Hit", nil, value.Null(), func(err error) { t.Fatal(err) })
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestBroadcast_ConditionFalseSkipsListener(t *testing.T) {
	r := New()
	var calls []string
	r.Register(&Listener{
		EventName: "Hit",
		Condition: func(params map[string]value.RuntimeValue) (bool, error) { return false, nil },
		Handler:   noopHandler(&calls, "skipped"),
	})
	r.Broadcast("Hit", nil, value.Null(), func(err error) { t.Fatal(err) })
	assert.Empty(t, calls)
}

func TestBroadcast_HandlerErrorDoesNotStopDispatch(t *testing.T) {
	r := New()
	var calls []string
	r.Register(&Listener{
		EventName: "Hit",
		Handler:   func(params map[string]value.RuntimeValue, this value.RuntimeValue) error { return errors.New("boom") },
	})
	r.Register(&Listener{EventName: "Hit", Handler: noopHandler(&calls, "second")})

	var gotErr error
	r.Broadcast("Hit", nil, value.Null(), func(err error) { gotErr = err })
	require.Error(t, gotErr)
	assert.Equal(t, []string{"second"}, calls)
}

func TestFilter_TypeMatchesOwnerProperty(t *testing.T) {
	r := New()
	owner := value.NewObject()
	owner.Set("type", value.Str("enemy"))

	var calls []string
	r.Register(&Listener{
		EventName: "Hit",
		Owner:     value.Obj(owner),
		Filters:   []Filter{{Tag: "type", Value: value.Str("enemy"), HasValue: true}},
		Handler:   noopHandler(&calls, "matched"),
	})
	r.Register(&Listener{
		EventName: "Hit",
		Owner:     value.Obj(owner),
		Filters:   []Filter{{Tag: "type", Value: value.Str("player"), HasValue: true}},
		Handler:   noopHandler(&calls, "not-matched"),
	})

	r.Broadcast("Hit", nil, value.Null(), func(err error) { t.Fatal(err) })
	assert.Equal(t, []string{"matched"}, calls)
}

func TestFilter_PropertyComparison(t *testing.T) {
	r := New()
	owner := value.NewObject()
	owner.Set("health", value.Num(75))

	var calls []string
	r.Register(&Listener{
		EventName: "Tick",
		Owner:     value.Obj(owner),
		Filters:   []Filter{{Tag: "health", Comparison: ">", Value: value.Num(50), HasValue: true}},
		Handler:   noopHandler(&calls, "above-50"),
	})
	r.Broadcast("Tick", nil, value.Null(), func(err error) { t.Fatal(err) })
	assert.Equal(t, []string{"above-50"}, calls)
}

func TestFilter_NearUsesEuclideanDistance(t *testing.T) {
	r := New()
	r.ProximityThreshold = 5

	owner := value.NewObject()
	owner.Set("x", value.Num(0))
	owner.Set("y", value.Num(0))

	near := value.NewObject()
	near.Set("x", value.Num(3))
	near.Set("y", value.Num(3))

	far := value.NewObject()
	far.Set("x", value.Num(100))
	far.Set("y", value.Num(100))

	var calls []string
	r.Register(&Listener{
		EventName: "Proximity",
		Owner:     value.Obj(owner),
		Filters:   []Filter{{Tag: "near", Value: value.Obj(near), HasValue: true}},
		Handler:   noopHandler(&calls, "near-match"),
	})
	r.Register(&Listener{
		EventName: "Proximity",
		Owner:     value.Obj(owner),
		Filters:   []Filter{{Tag: "near", Value: value.Obj(far), HasValue: true}},
		Handler:   noopHandler(&calls, "far-no-match"),
	})

	r.Broadcast("Proximity", nil, value.Null(), func(err error) { t.Fatal(err) })
	assert.Equal(t, []string{"near-match"}, calls)
}

func TestBroadcast_CurrentPointerSetDuringDispatchOnly(t *testing.T) {
	r := New()
	var sawCurrent bool
	r.Register(&Listener{
		EventName: "Hit",
		Handler: func(params map[string]value.RuntimeValue, this value.RuntimeValue) error {
			sawCurrent = r.Current() != nil && r.Current().Name == "Hit"
			return nil
		},
	})
	require.Nil(t, r.Current())
	r.Broadcast("Hit", nil, value.Null(), func(err error) { t.Fatal(err) })
	assert.True(t, sawCurrent)
	assert.Nil(t, r.Current(), "current pointer must be cleared after dispatch")
}
