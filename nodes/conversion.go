package nodes

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const categoryConversion = "Conversion"

type conversionType struct {
	name string
	typ  string
	zero any
}

var conversionTypes = []conversionType{
	{name: "Int", typ: TypeInt, zero: 0},
	{name: "Float", typ: TypeFloat, zero: 0.0},
	{name: "Bool", typ: TypeBool, zero: false},
	{name: "String", typ: TypeString, zero: ""},
}

// formatFloat prints f the shortest way that still reads back as a float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// convert turns v, already coerced to from, into to.
func convert(v any, to string) (any, error) {
	switch to {
	case TypeInt:
		switch x := v.(type) {
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: cannot convert %v to an integer", ErrInvalidInput, x)
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidInput, x)
			}
			return n, nil
		}
		return toInt(v)
	case TypeFloat:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, s)
			}
			return f, nil
		}
		return toFloat(v)
	case TypeBool:
		if s, ok := v.(string); ok {
			return s != "", nil
		}
		return toBool(v)
	case TypeString:
		switch x := v.(type) {
		case int64:
			return strconv.FormatInt(x, 10), nil
		case float64:
			return formatFloat(x), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("%w: unknown target type %s", ErrInvalidInput, to)
}

// ConversionNodes returns a converter for every ordered pair of distinct
// primitive types.
func ConversionNodes() []Definition {
	var defs []Definition
	for _, from := range conversionTypes {
		for _, to := range conversionTypes {
			if from.name == to.name {
				continue
			}
			target := to.typ
			defs = append(defs, Definition{
				Name:        from.name + "2" + to.name,
				DisplayName: fmt.Sprintf("Convert %s to %s", from.name, to.name),
				Function:    strings.ToLower(from.name + "2" + to.name),
				Category:    categoryConversion,
				Inputs: Inputs{Required: []InputSpec{
					{Name: "input1", Type: from.typ, Default: from.zero},
				}},
				ReturnTypes: []string{to.typ},
				Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
					v, err := convert(args.Any("input1"), target)
					if err != nil {
						return Output{}, err
					}
					return out(v), nil
				},
			})
		}
	}
	return defs
}
