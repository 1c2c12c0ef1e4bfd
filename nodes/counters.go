package nodes

import (
	"context"
	"fmt"
	"strings"
)

// intRange is the cursor of a Yieldable Iterator Int instance.
type intRange struct {
	start, end, step int64
	pos              int64
}

func (r intRange) len() int64 {
	switch {
	case r.step > 0 && r.end > r.start:
		return (r.end - r.start + r.step - 1) / r.step
	case r.step < 0 && r.end < r.start:
		return (r.start - r.end - r.step - 1) / -r.step
	}
	return 0
}

func (r intRange) sameBounds(o intRange) bool {
	return r.start == o.start && r.end == o.end && r.step == o.step
}

// CounterNodes keep a position between invocations in Env.State, one slot per
// node instance. Reset restarts the sequence.
func CounterNodes() []Definition {
	return []Definition{
		{
			Name:        "CounterInteger",
			DisplayName: "Counter Integer",
			Function:    "generate",
			Category:    categoryLogic,
			Description: "Counts up by one on every run, starting after start.",
			Inputs: Inputs{
				Required: []InputSpec{{Name: "reset", Type: TypeBool, Default: false}},
				Optional: []InputSpec{{Name: "start", Type: TypeInt, Default: 0}},
				Hidden:   []InputSpec{uniqueIDInput},
			},
			ReturnTypes: []string{TypeInt},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				key := stateKey("CounterInteger", args)
				v, ok := env.State.Get(key)
				counter, _ := v.(int64)
				if !ok || args.Bool("reset") {
					counter = args.Int("start")
				}
				counter++
				env.State.Set(key, counter)
				return out(counter), nil
			},
		},
		{
			Name:        "CounterFloat",
			DisplayName: "Counter Float",
			Function:    "generate",
			Category:    categoryLogic,
			Inputs: Inputs{
				Required: []InputSpec{
					{Name: "reset", Type: TypeBool, Default: false},
					{Name: "start", Type: TypeFloat, Default: 0.0, Step: bound(1)},
					{Name: "step", Type: TypeFloat, Default: 1.0, Step: bound(1)},
				},
				Hidden: []InputSpec{uniqueIDInput},
			},
			ReturnTypes: []string{TypeFloat},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				key := stateKey("CounterFloat", args)
				v, ok := env.State.Get(key)
				counter, _ := v.(float64)
				if !ok || args.Bool("reset") {
					counter = args.Float("start")
				}
				counter += args.Float("step")
				env.State.Set(key, counter)
				return out(counter), nil
			},
		},
		{
			Name:        "YieldableIteratorString",
			DisplayName: "Yieldable Iterator String",
			Function:    "generate",
			Category:    categoryLogic,
			Description: "Returns the next item of the separated list on every run, wrapping at the end.",
			Inputs: Inputs{
				Required: []InputSpec{
					{Name: "input_string", Type: TypeString, Default: "a$b$c"},
					{Name: "separator", Type: TypeString, Default: "$"},
					{Name: "reset", Type: TypeBool, Default: false},
				},
				Hidden: []InputSpec{uniqueIDInput},
			},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				items := strings.Split(args.String("input_string"), args.String("separator"))
				key := stateKey("YieldableIteratorString", args)
				index := int64(0)
				if v, ok := env.State.Get(key); ok && !args.Bool("reset") {
					index = v.(int64) + 1
				}
				if index >= int64(len(items)) {
					index = 0
				}
				env.State.Set(key, index)
				return out(items[index]), nil
			},
		},
		{
			Name:        "YieldableIteratorInt",
			DisplayName: "Yieldable (Sequential) Iterator Int",
			Function:    "generate",
			Category:    categoryLogic,
			Description: "Walks start, start+step, ... up to but excluding end, then starts over.",
			Inputs: Inputs{
				Required: []InputSpec{
					{Name: "start", Type: TypeInt, Default: 0},
					{Name: "end", Type: TypeInt, Default: 10},
					{Name: "step", Type: TypeInt, Default: 1},
					{Name: "reset", Type: TypeBool, Default: false},
				},
				Hidden: []InputSpec{uniqueIDInput},
			},
			ReturnTypes: []string{TypeInt},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				r := intRange{start: args.Int("start"), end: args.Int("end"), step: args.Int("step")}
				if r.step == 0 {
					return Output{}, fmt.Errorf("%w: step must not be zero", ErrInvalidInput)
				}
				n := r.len()
				if n == 0 {
					return Output{}, fmt.Errorf("%w: range(%d, %d, %d) is empty", ErrInvalidInput, r.start, r.end, r.step)
				}

				key := stateKey("YieldableIteratorInt", args)
				if v, ok := env.State.Get(key); ok && !args.Bool("reset") {
					// changing the bounds starts a new sequence
					if prev := v.(intRange); prev.sameBounds(r) {
						r.pos = prev.pos
					}
				}
				if r.pos >= n {
					r.pos = 0
				}
				value := r.start + r.pos*r.step
				r.pos++
				env.State.Set(key, r)
				return out(value), nil
			},
		},
	}
}
