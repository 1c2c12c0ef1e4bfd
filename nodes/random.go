package nodes

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const categoryRandom = "Random"

var seedInput = InputSpec{Name: "seed", Type: TypeInt, Default: 0, Min: bound(0)}

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

func roundTo(v float64, places int64) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}

// int64Between returns a value in [lo, hi] drawn from next.
func int64Between(lo, hi int64, next func() uint64, nextN func(uint64) uint64) int64 {
	span := uint64(hi) - uint64(lo) + 1
	if span == 0 {
		return int64(next())
	}
	return lo + int64(nextN(span))
}

func choices(a Args) []string {
	return strings.Split(a.String("input_string"), a.String("separator"))
}

func pick(a Args) (string, error) {
	list := choices(a)
	index := a.Int("index")
	if index < 0 || index >= int64(len(list)) {
		return "", fmt.Errorf("%w: index %d out of range for %d choices", ErrInvalidInput, index, len(list))
	}
	return list[index], nil
}

// Dimensions picks a width and height with an aspect ratio drawn from
// [minRatio, maxRatio], an area close to resolution squared and both sides
// multiples of step.
func Dimensions(resolution int64, minRatio, maxRatio float64, step int64, seed int64) (int64, int64, error) {
	if step <= 0 || resolution <= 0 {
		return 0, 0, fmt.Errorf("%w: resolution and multiples must be positive", ErrInvalidInput)
	}
	if minRatio <= 0 || maxRatio < minRatio {
		return 0, 0, fmt.Errorf("%w: ratio range [%v, %v]", ErrInvalidInput, minRatio, maxRatio)
	}
	rng := seeded(seed)
	area := float64(resolution * resolution)
	ratio := minRatio + rng.Float64()*(maxRatio-minRatio)

	height := max(1, int64(math.Sqrt(area/ratio)))
	width := int64(area / float64(height))
	height = int64(math.RoundToEven(float64(height)/float64(step))) * step
	width = int64(math.RoundToEven(float64(width)/float64(step))) * step

	if float64(width*height) > area {
		if rng.IntN(2) == 0 {
			width -= step
		} else {
			height -= step
		}
	}
	return width, height, nil
}

func shuffleNode(name, displayName, defaultChoices string) Definition {
	return Definition{
		Name:        name,
		DisplayName: displayName,
		Function:    "generate",
		Category:    categoryRandom,
		Inputs: Inputs{Required: []InputSpec{
			{Name: "input_string", Type: TypeString, Default: defaultChoices},
			{Name: "separator", Type: TypeString, Default: "$"},
			seedInput,
		}},
		ReturnTypes: []string{TypeList},
		Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
			list := choices(args)
			seeded(args.Int("seed")).Shuffle(len(list), func(i, j int) {
				list[i], list[j] = list[j], list[i]
			})
			return out(list), nil
		},
	}
}

func manualChoiceNode(name, displayName, defaultChoices, returnType string, parse func(string) (any, error)) Definition {
	return Definition{
		Name:        name,
		DisplayName: displayName,
		Function:    "generate",
		Category:    categoryRandom,
		Inputs: Inputs{Required: []InputSpec{
			{Name: "input_string", Type: TypeString, Default: defaultChoices},
			{Name: "separator", Type: TypeString, Default: "$"},
			{Name: "index", Type: TypeInt, Default: 0, Min: bound(0)},
		}},
		ReturnTypes: []string{returnType},
		Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
			s, err := pick(args)
			if err != nil {
				return Output{}, err
			}
			v, err := parse(strings.TrimSpace(s))
			if err != nil {
				return Output{}, fmt.Errorf("%w: %q: %v", ErrInvalidInput, s, err)
			}
			return out(v), nil
		},
	}
}

func RandomNodes() []Definition {
	return []Definition{
		{
			Name:        "SystemRandomFloat",
			DisplayName: "System Random Float",
			Function:    "generate",
			Category:    categoryRandom,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "min_val", Type: TypeFloat, Default: 0.0, Step: bound(0.01)},
				{Name: "max_val", Type: TypeFloat, Default: 1.0, Step: bound(0.01)},
				{Name: "precision", Type: TypeInt, Default: 0, Min: bound(0), Max: bound(10)},
			}},
			ReturnTypes: []string{TypeFloat},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				lo, hi := args.Float("min_val"), args.Float("max_val")
				v := lo + rand.Float64()*(hi-lo)
				if p := args.Int("precision"); p > 0 {
					v = roundTo(v, p)
				}
				return out(v), nil
			},
		},
		{
			Name:        "SystemRandomInt",
			DisplayName: "System Random Int",
			Function:    "generate",
			Category:    categoryRandom,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "min_val", Type: TypeInt, Default: 0},
				{Name: "max_val", Type: TypeInt, Default: int64(math.MaxInt64)},
			}},
			ReturnTypes: []string{TypeInt},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				lo, hi := args.Int("min_val"), args.Int("max_val")
				if lo > hi {
					return Output{}, fmt.Errorf("%w: min_val %d > max_val %d", ErrInvalidInput, lo, hi)
				}
				return out(int64Between(lo, hi, rand.Uint64, rand.Uint64N)), nil
			},
		},
		{
			Name:        "UUIDGenerator",
			DisplayName: "UUID Generator",
			Function:    "generate",
			Category:    categoryRandom,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "length", Type: TypeInt, Default: 36, Min: bound(1), Max: bound(36)},
			}},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(uuid.NewString()[:args.Int("length")]), nil
			},
		},
		{
			Name:        "UniformRandomFloat",
			DisplayName: "Uniform Random Float",
			Function:    "generate",
			Category:    categoryRandom,
			Description: "Seeded uniform float in [min_val, max_val]. Returns min_val when the range is empty.",
			Inputs: Inputs{Required: []InputSpec{
				{Name: "min_val", Type: TypeFloat, Default: 0.0, Step: bound(0.02)},
				{Name: "max_val", Type: TypeFloat, Default: 1.0, Step: bound(0.02)},
				{Name: "decimal_places", Type: TypeInt, Default: 1, Min: bound(0), Max: bound(10)},
				seedInput,
			}},
			ReturnTypes: []string{TypeFloat},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				lo, hi := args.Float("min_val"), args.Float("max_val")
				if lo > hi {
					return out(lo), nil
				}
				v := lo + seeded(args.Int("seed")).Float64()*(hi-lo)
				return out(roundTo(v, args.Int("decimal_places"))), nil
			},
		},
		{
			Name:        "UniformRandomInt",
			DisplayName: "Uniform Random Int",
			Function:    "generate",
			Category:    categoryRandom,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "min_val", Type: TypeInt, Default: 0},
				{Name: "max_val", Type: TypeInt, Default: 1},
				seedInput,
			}},
			ReturnTypes: []string{TypeInt},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				lo, hi := args.Int("min_val"), args.Int("max_val")
				if lo > hi {
					return out(lo), nil
				}
				rng := seeded(args.Int("seed"))
				return out(int64Between(lo, hi, rng.Uint64, rng.Uint64N)), nil
			},
		},
		{
			Name:        "UniformRandomChoice",
			DisplayName: "Uniform Random Choice",
			Function:    "generate",
			Category:    categoryRandom,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "input_string", Type: TypeString, Default: "a$b$c"},
				{Name: "separator", Type: TypeString, Default: "$"},
				seedInput,
			}},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				list := choices(args)
				return out(list[seeded(args.Int("seed")).IntN(len(list))]), nil
			},
		},
		manualChoiceNode("ManualChoiceString", "Manual Choice String", "a$b$c", TypeString, func(s string) (any, error) {
			return s, nil
		}),
		manualChoiceNode("ManualChoiceInt", "Manual Choice Int", "1$2$3", TypeInt, func(s string) (any, error) {
			return strconv.ParseInt(s, 10, 64)
		}),
		manualChoiceNode("ManualChoiceFloat", "Manual Choice Float", "1.0$2.0$3.0", TypeFloat, func(s string) (any, error) {
			return strconv.ParseFloat(s, 64)
		}),
		shuffleNode("RandomShuffleInt", "Random Shuffle Int", "1$2$3"),
		shuffleNode("RandomShuffleFloat", "Random Shuffle Float", "1.0$2.0$3.0"),
		shuffleNode("RandomShuffleString", "Random Shuffle String", "a$b$c"),
		{
			Name:        "DimensionSelectorWithSeedNode",
			DisplayName: "Random Width/Height with Resolution",
			Function:    "select_dimensions",
			Category:    categoryRandom,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "resolution", Type: TypeInt, Default: 1024, Min: bound(1)},
				{Name: "min_ratio", Type: TypeFloat, Default: 0.6},
				{Name: "max_ratio", Type: TypeFloat, Default: 1.6},
				{Name: "multiples", Type: TypeInt, Default: 32, Min: bound(1)},
				seedInput,
			}},
			ReturnTypes: []string{TypeInt, TypeInt},
			ReturnNames: []string{"width", "height"},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				w, h, err := Dimensions(args.Int("resolution"), args.Float("min_ratio"), args.Float("max_ratio"), args.Int("multiples"), args.Int("seed"))
				if err != nil {
					return Output{}, err
				}
				return out(w, h), nil
			},
		},
	}
}
