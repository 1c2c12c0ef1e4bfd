package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"comfynodes/logger"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownNode  = errors.New("nodes: unknown node")
	ErrDuplicate    = errors.New("nodes: duplicate node name")
	ErrDefinition   = errors.New("nodes: invalid definition")
	ErrMissingInput = errors.New("nodes: missing required input")
	ErrInvalidInput = errors.New("nodes: invalid input")
)

// Registry holds node definitions in registration order.
type Registry struct {
	defs     map[string]*Definition
	order    []string
	validate *validator.Validate
}

func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]*Definition),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Default returns a registry with every node of the pack registered.
func Default() (*Registry, error) {
	r := NewRegistry()
	groups := [][]Definition{
		ImageNodes(),
		IONodes(),
		SecureNodes(),
		DataNodes(),
		StructureNodes(),
		ConversionNodes(),
		LogicNodes(),
		MathNodes(),
		RandomNodes(),
		CounterNodes(),
		WebUINodes(),
		TaggerNodes(),
	}
	for _, group := range groups {
		if err := r.Register(group...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and adds defs. Nothing is added if any of them is
// invalid or already registered.
func (r *Registry) Register(defs ...Definition) error {
	seen := make(map[string]bool, len(defs))
	for i := range defs {
		def := &defs[i]
		if err := r.validate.Struct(def); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrDefinition, def.Name, err)
		}
		if _, exists := r.defs[def.Name]; exists || seen[def.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicate, def.Name)
		}
		seen[def.Name] = true
	}

	for i := range defs {
		def := defs[i]
		r.defs[def.Name] = &def
		r.order = append(r.order, def.Name)
	}
	return nil
}

func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Definitions returns every definition in registration order.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Mappings returns the class mapping and the display name mapping the host
// consumes when loading the pack.
func (r *Registry) Mappings() (map[string]*Definition, map[string]string) {
	classes := make(map[string]*Definition, len(r.defs))
	names := make(map[string]string, len(r.defs))
	for name, def := range r.defs {
		classes[name] = def
		names[name] = def.DisplayName
	}
	return classes, names
}

// Invoke runs the named node. Missing inputs take their declared default,
// every input is coerced to its declared type and errors from the node body
// are returned unchanged.
func (r *Registry) Invoke(ctx context.Context, env *Env, name string, args Args) (Output, error) {
	def, ok := r.defs[name]
	if !ok {
		return Output{}, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	log := logger.Node(name)

	resolved, err := def.resolve(args)
	if err != nil {
		log.Error("Rejected node inputs", "error", err)
		return Output{}, err
	}

	start := time.Now()
	result, err := def.Run(ctx, env, resolved)
	if err != nil {
		log.Error("Node failed", "error", err, "took", logger.Elapsed(start))
		return Output{}, err
	}
	if len(result.Values) != len(def.ReturnTypes) {
		return Output{}, fmt.Errorf("nodes: %s returned %d values, declares %d", name, len(result.Values), len(def.ReturnTypes))
	}
	log.Debug("Node finished", "took", logger.Elapsed(start))
	return result, nil
}

func (d *Definition) resolve(args Args) (Args, error) {
	resolved := make(Args, len(args))
	for k, v := range args {
		resolved[k] = v
	}

	for _, group := range []struct {
		specs    []InputSpec
		required bool
	}{{d.Inputs.Required, true}, {d.Inputs.Optional, false}} {
		for _, spec := range group.specs {
			v, present := resolved[spec.Name]
			if !present || v == nil {
				if spec.Default == nil {
					if group.required {
						return nil, fmt.Errorf("%w: %s", ErrMissingInput, spec.Name)
					}
					continue
				}
				v = spec.Default
			}
			coerced, err := spec.coerce(v)
			if err != nil {
				return nil, err
			}
			resolved[spec.Name] = coerced
		}
	}
	return resolved, nil
}

func (s *InputSpec) coerce(v any) (any, error) {
	switch s.Type {
	case TypeInt:
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, s.Name, err)
		}
		if err := s.checkRange(float64(n)); err != nil {
			return nil, err
		}
		return n, nil
	case TypeFloat:
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, s.Name, err)
		}
		if err := s.checkRange(f); err != nil {
			return nil, err
		}
		return f, nil
	case TypeBool:
		b, err := toBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, s.Name, err)
		}
		return b, nil
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: want string, got %T", ErrInvalidInput, s.Name, v)
		}
		return str, nil
	case TypeDict:
		return toDict(s.Name, v)
	case TypeList:
		return toList(s.Name, v)
	case TypeSet:
		return toSet(s.Name, v)
	case TypeCombo:
		str, ok := v.(string)
		if !ok || !slices.Contains(s.Options, str) {
			return nil, fmt.Errorf("%w: %s: %v is not one of %v", ErrInvalidInput, s.Name, v, s.Options)
		}
		return str, nil
	}
	return v, nil
}

func (s *InputSpec) checkRange(v float64) error {
	if s.Min != nil && v < *s.Min {
		return fmt.Errorf("%w: %s: %v is below the minimum %v", ErrInvalidInput, s.Name, v, *s.Min)
	}
	if s.Max != nil && v > *s.Max {
		return fmt.Errorf("%w: %s: %v is above the maximum %v", ErrInvalidInput, s.Name, v, *s.Max)
	}
	return nil
}

// InputTypes renders the input schema in the host's INPUT_TYPES layout:
// section -> name -> [type, options].
func (d *Definition) InputTypes() map[string]map[string][]any {
	sections := map[string][]InputSpec{
		"required": d.Inputs.Required,
		"optional": d.Inputs.Optional,
		"hidden":   d.Inputs.Hidden,
	}
	out := make(map[string]map[string][]any)
	for section, specs := range sections {
		if len(specs) == 0 {
			continue
		}
		out[section] = make(map[string][]any, len(specs))
		for _, spec := range specs {
			var kind any = spec.Type
			if spec.Type == TypeCombo {
				kind = spec.Options
			}
			out[section][spec.Name] = []any{kind, spec.options()}
		}
	}
	return out
}

func (s *InputSpec) options() map[string]any {
	opts := make(map[string]any)
	if s.Default != nil {
		opts["default"] = s.Default
	}
	if s.Min != nil {
		opts["min"] = *s.Min
	}
	if s.Max != nil {
		opts["max"] = *s.Max
	}
	if s.Step != nil {
		opts["step"] = *s.Step
	}
	if s.Multiline {
		opts["multiline"] = true
	}
	return opts
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case float32:
		return toInt(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("want integer, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("want number, got %T", v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int, int32, int64, float32, float64, json.Number:
		f, err := toFloat(b)
		return f != 0, err
	case string:
		return strconv.ParseBool(b)
	}
	return false, fmt.Errorf("want boolean, got %T", v)
}
