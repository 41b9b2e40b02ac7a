package dispatcher

import (
	"time"

	"github.com/spf13/cast"
)

// Payload carries the named arguments of a dispatched event. Handlers
// read the fields they care about through the typed accessors; a missing
// key and a key of the wrong type look the same to them.
type Payload map[string]any

// Results maps each subscriber's label (or registration id when no label
// was given) to the value its handler returned.
type Results map[string]any

// Event is what a subscribed handler receives.
type Event struct {
	Name      string
	Namespace string
	Payload   Payload
}

func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	return s, err == nil
}

func (p Payload) Uint(key string) (uint, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	u, err := cast.ToUintE(v)
	return u, err == nil
}

func (p Payload) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok {
		return false, false
	}
	b, err := cast.ToBoolE(v)
	return b, err == nil
}

func (p Payload) Time(key string) (time.Time, bool) {
	v, ok := p[key]
	if !ok {
		return time.Time{}, false
	}
	t, err := cast.ToTimeE(v)
	return t, err == nil
}

func (p Payload) Strings(key string) ([]string, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	s, err := cast.ToStringSliceE(v)
	return s, err == nil
}

func (p Payload) Uints(key string) ([]uint, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	raw, err := cast.ToSliceE(v)
	if err != nil {
		// A typed slice like []uint or []int isn't a []interface{}
		if typed, uok := v.([]uint); uok {
			return typed, true
		}
		if ints, iok := v.([]int); iok {
			out := make([]uint, 0, len(ints))
			for _, n := range ints {
				u, cerr := cast.ToUintE(n)
				if cerr != nil {
					return nil, false
				}
				out = append(out, u)
			}
			return out, true
		}
		return nil, false
	}
	out := make([]uint, 0, len(raw))
	for _, item := range raw {
		u, cerr := cast.ToUintE(item)
		if cerr != nil {
			return nil, false
		}
		out = append(out, u)
	}
	return out, true
}

func (p Payload) StringMap(key string) (map[string]string, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	m, err := cast.ToStringMapStringE(v)
	return m, err == nil
}
