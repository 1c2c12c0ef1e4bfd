package nodes

import (
	"fmt"
)

// Args holds the inputs of one invocation keyed by input name. After
// Registry.Invoke has resolved them, typed inputs hold int64, float64, bool
// or string values, so the accessors below never need to convert.
type Args map[string]any

func (a Args) Int(name string) int64 {
	v, _ := a[name].(int64)
	return v
}

func (a Args) Float(name string) float64 {
	v, _ := a[name].(float64)
	return v
}

func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

func (a Args) Any(name string) any {
	return a[name]
}

// number is an untyped numeric input. Integers stay exact while both
// operands are integers.
type number struct {
	i     int64
	f     float64
	isInt bool
}

func (a Args) Number(name string) (number, error) {
	return toNumber(name, a[name])
}

func toNumber(name string, v any) (number, error) {
	switch n := v.(type) {
	case int, int32, int64, uint32:
		i, err := toInt(n)
		return number{i: i, f: float64(i), isInt: true}, err
	case float32, float64:
		f, err := toFloat(n)
		return number{f: f}, err
	case bool:
		i, _ := toInt(n)
		return number{i: i, f: float64(i), isInt: true}, nil
	}
	return number{}, fmt.Errorf("%w: %s: want a number, got %T", ErrInvalidInput, name, v)
}

func (n number) value() any {
	if n.isInt {
		return n.i
	}
	return n.f
}

func intNumber(i int64) number {
	return number{i: i, f: float64(i), isInt: true}
}

func floatNumber(f float64) number {
	return number{f: f}
}
