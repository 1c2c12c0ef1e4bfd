package nodes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
)

const categoryMath = "Math"

var (
	ErrDivisionByZero = errors.New("nodes: division by zero")
	ErrOverflow       = errors.New("nodes: result too large")
)

var (
	anyPair  = []InputSpec{{Name: "input1", Type: TypeAny}, {Name: "input2", Type: TypeAny}}
	anyOne   = []InputSpec{{Name: "input1", Type: TypeAny}}
	floatOne = []InputSpec{{Name: "input1", Type: TypeFloat, Default: 0.0}}
)

func mathNode(name, displayName, function string, inputs []InputSpec, returnType string, fn func(Args) (any, error)) Definition {
	def := logicNode(name, displayName, function, inputs, returnType, fn)
	def.Category = categoryMath
	return def
}

// binary applies intOp when both operands are integers and floatOp otherwise.
func binary(a Args, intOp func(x, y int64) number, floatOp func(x, y float64) number) (any, error) {
	x, err := a.Number("input1")
	if err != nil {
		return nil, err
	}
	y, err := a.Number("input2")
	if err != nil {
		return nil, err
	}
	if x.isInt && y.isInt {
		return intOp(x.i, y.i).value(), nil
	}
	return floatOp(x.f, y.f).value(), nil
}

func unary(a Args, intOp func(int64) number, floatOp func(float64) number) (any, error) {
	x, err := a.Number("input1")
	if err != nil {
		return nil, err
	}
	if x.isInt {
		return intOp(x.i).value(), nil
	}
	return floatOp(x.f).value(), nil
}

func toInt64(f float64) (number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return number{}, fmt.Errorf("%w: %v does not fit an integer", ErrOverflow, f)
	}
	return intNumber(int64(f)), nil
}

func rounding(a Args, fn func(float64) float64) (any, error) {
	x, err := a.Number("input1")
	if err != nil {
		return nil, err
	}
	if x.isInt {
		return x.i, nil
	}
	n, err := toInt64(fn(x.f))
	if err != nil {
		return nil, err
	}
	return n.value(), nil
}

// power refuses results with more than 100 decimal digits.
func power(x, p float64) (float64, error) {
	abs := math.Abs(x)
	switch {
	case abs == 0:
		if p < 0 {
			return 0, fmt.Errorf("%w: 0 cannot be raised to a negative power", ErrDivisionByZero)
		}
	case abs == 1:
	case math.Log10(abs)*p > 100:
		return 0, fmt.Errorf("%w: power exceeds 100 digits", ErrOverflow)
	}
	return math.Pow(x, p), nil
}

// floorMod follows the sign of the divisor.
func floorMod(a, m int64) int64 {
	r := a % m
	if r != 0 && (r < 0) != (m < 0) {
		r += m
	}
	return r
}

// isPrimeSmall is trial division over 6k±1.
func isPrimeSmall(n int64) bool {
	switch {
	case n < 2:
		return false
	case n < 4:
		return true
	case n%2 == 0 || n%3 == 0:
		return false
	}
	for i := int64(5); i*i <= n; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

// IsPrime uses trial division below threshold and that many Miller-Rabin
// rounds above it.
func IsPrime(n, threshold int64, rounds int) bool {
	if n < 2 {
		return false
	}
	if n < threshold {
		return isPrimeSmall(n)
	}
	return big.NewInt(n).ProbablyPrime(rounds)
}

func MathNodes() []Definition {
	return []Definition{
		mathNode("MinNode", "Min", "min", anyPair, TypeAny, func(a Args) (any, error) {
			return binary(a,
				func(x, y int64) number { return intNumber(min(x, y)) },
				func(x, y float64) number { return floatNumber(math.Min(x, y)) })
		}),
		mathNode("MaxNode", "Max", "max", anyPair, TypeAny, func(a Args) (any, error) {
			return binary(a,
				func(x, y int64) number { return intNumber(max(x, y)) },
				func(x, y float64) number { return floatNumber(math.Max(x, y)) })
		}),
		mathNode("RoundNode", "Round", "round", anyOne, TypeInt, func(a Args) (any, error) {
			return rounding(a, math.RoundToEven)
		}),
		mathNode("AbsNode", "Abs", "abs", anyOne, TypeAny, func(a Args) (any, error) {
			return unary(a,
				func(x int64) number {
					if x < 0 {
						x = -x
					}
					return intNumber(x)
				},
				func(x float64) number { return floatNumber(math.Abs(x)) })
		}),
		mathNode("FloorNode", "Floor", "floor", anyOne, TypeInt, func(a Args) (any, error) {
			return rounding(a, math.Floor)
		}),
		mathNode("CeilNode", "Ceil", "ceil", anyOne, TypeInt, func(a Args) (any, error) {
			return rounding(a, math.Ceil)
		}),
		mathNode("PowerNode", "Power", "power", []InputSpec{
			{Name: "input1", Type: TypeAny},
			{Name: "power", Type: TypeAny},
		}, TypeFloat, func(a Args) (any, error) {
			x, err := a.Number("input1")
			if err != nil {
				return nil, err
			}
			p, err := a.Number("power")
			if err != nil {
				return nil, err
			}
			return power(x.f, p.f)
		}),
		mathNode("SigmoidNode", "Sigmoid", "sigmoid", floatOne, TypeFloat, func(a Args) (any, error) {
			return 1 / (1 + math.Exp(-a.Float("input1"))), nil
		}),
		{
			Name:        "IsPrimeNode",
			DisplayName: "Is Prime?",
			Function:    "is_prime",
			Category:    categoryMath,
			Description: "Trial division below threshold, Miller-Rabin from threshold up.",
			Inputs: Inputs{
				Required: []InputSpec{
					{Name: "value", Type: TypeInt, Default: 1, Min: bound(-9999999999), Max: bound(9999999999), Step: bound(1)},
				},
				Optional: []InputSpec{
					{Name: "threshold", Type: TypeInt, Default: 10_000_000, Min: bound(1), Max: bound(9999999999)},
					{Name: "miller_rabin_rounds", Type: TypeInt, Default: 5, Min: bound(1), Max: bound(50)},
				},
			},
			ReturnTypes: []string{TypeBool},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(IsPrime(args.Int("value"), args.Int("threshold"), int(args.Int("miller_rabin_rounds")))), nil
			},
		},
		mathNode("RAMPNode", "RAMP", "ramp", floatOne, TypeFloat, func(a Args) (any, error) {
			return math.Max(0, a.Float("input1")), nil
		}),
		mathNode("ModuloNode", "Modulo", "modulo", []InputSpec{
			{Name: "input1", Type: TypeInt, Default: 0},
			{Name: "modulo", Type: TypeInt, Default: 1},
		}, TypeInt, func(a Args) (any, error) {
			m := a.Int("modulo")
			if m == 0 {
				return nil, fmt.Errorf("%w: modulo by zero", ErrDivisionByZero)
			}
			return floorMod(a.Int("input1"), m), nil
		}),
		mathNode("LogNode", "Log", "log", []InputSpec{
			{Name: "input1", Type: TypeFloat, Default: 1.0},
			{Name: "base", Type: TypeFloat, Default: math.E},
		}, TypeFloat, func(a Args) (any, error) {
			x, base := a.Float("input1"), a.Float("base")
			if x <= 0 || base <= 0 || base == 1 {
				return nil, fmt.Errorf("%w: log of %v in base %v is undefined", ErrInvalidInput, x, base)
			}
			return math.Log(x) / math.Log(base), nil
		}),
		mathNode("MultiplyNode", "Multiply", "multiply", anyPair, TypeAny, func(a Args) (any, error) {
			return binary(a,
				func(x, y int64) number { return intNumber(x * y) },
				func(x, y float64) number { return floatNumber(x * y) })
		}),
		mathNode("DivideNode", "Divide", "divide", anyPair, TypeFloat, func(a Args) (any, error) {
			x, err := a.Number("input1")
			if err != nil {
				return nil, err
			}
			y, err := a.Number("input2")
			if err != nil {
				return nil, err
			}
			if y.f == 0 {
				return nil, fmt.Errorf("%w: cannot divide by zero", ErrDivisionByZero)
			}
			return x.f / y.f, nil
		}),
	}
}
