package nodes

import (
	"context"
	"fmt"
	"regexp"
)

const categoryLogic = "Logic Gates"

func pair(typ string, zero any) []InputSpec {
	return []InputSpec{
		{Name: "input1", Type: typ, Default: zero},
		{Name: "input2", Type: typ, Default: zero},
	}
}

func either(typ string, zero any) []InputSpec {
	return append([]InputSpec{{Name: "condition", Type: TypeInt, Default: 0}}, pair(typ, zero)...)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func logicNode(name, displayName, function string, inputs []InputSpec, returnType string, fn func(Args) (any, error)) Definition {
	return Definition{
		Name:        name,
		DisplayName: displayName,
		Function:    function,
		Category:    categoryLogic,
		Inputs:      Inputs{Required: inputs},
		ReturnTypes: []string{returnType},
		Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
			v, err := fn(args)
			if err != nil {
				return Output{}, err
			}
			return out(v), nil
		},
	}
}

func LogicNodes() []Definition {
	return []Definition{
		logicNode("LogicGateCompareFloat", "ABiggerThanB(Float)", "compareFloat", pair(TypeFloat, 0.0), TypeFloat, func(a Args) (any, error) {
			if a.Float("input1") > a.Float("input2") {
				return 1.0, nil
			}
			return 0.0, nil
		}),
		logicNode("LogicGateCompareInt", "ABiggerThanB(Int)", "compareInt", pair(TypeInt, 0), TypeInt, func(a Args) (any, error) {
			return boolInt(a.Int("input1") > a.Int("input2")), nil
		}),
		logicNode("LogicGateCompareString", "AContainsB(String)", "compareString", []InputSpec{
			{Name: "regex", Type: TypeString, Default: ""},
			{Name: "input2", Type: TypeString, Default: ""},
		}, TypeInt, func(a Args) (any, error) {
			re, err := regexp.Compile(a.String("regex"))
			if err != nil {
				return nil, fmt.Errorf("%w: regex: %v", ErrInvalidInput, err)
			}
			return boolInt(re.MatchString(a.String("input2"))), nil
		}),
		logicNode("LogicGateEitherFloat", "ConditionAorB(Float)", "either", either(TypeFloat, 0.0), TypeFloat, func(a Args) (any, error) {
			if a.Int("condition") != 0 {
				return a.Float("input1"), nil
			}
			return a.Float("input2"), nil
		}),
		logicNode("LogicGateEitherInt", "ConditionAorB(Int)", "either", either(TypeInt, 0), TypeInt, func(a Args) (any, error) {
			if a.Int("condition") != 0 {
				return a.Int("input1"), nil
			}
			return a.Int("input2"), nil
		}),
		logicNode("LogicGateEitherString", "Either String", "either", either(TypeString, ""), TypeString, func(a Args) (any, error) {
			if a.Int("condition") != 0 {
				return a.String("input1"), nil
			}
			return a.String("input2"), nil
		}),
		logicNode("StaticNumberInt", "Static Number Int", "staticNumber", []InputSpec{{Name: "number", Type: TypeInt, Default: 0}}, TypeInt, func(a Args) (any, error) {
			return a.Int("number"), nil
		}),
		logicNode("StaticNumberFloat", "Static Number Float", "staticNumber", []InputSpec{{Name: "number", Type: TypeFloat, Default: 0.0}}, TypeFloat, func(a Args) (any, error) {
			return a.Float("number"), nil
		}),
		logicNode("StaticString", "Static String", "staticString", []InputSpec{{Name: "string", Type: TypeString, Default: ""}}, TypeString, func(a Args) (any, error) {
			return a.String("string"), nil
		}),
		logicNode("LogicGateAndInt", "And(Int)", "and_", pair(TypeInt, 0), TypeInt, func(a Args) (any, error) {
			return boolInt(a.Int("input1") != 0 && a.Int("input2") != 0), nil
		}),
		logicNode("LogicGateAndFloat", "And(Float)", "and_", pair(TypeFloat, 0.0), TypeInt, func(a Args) (any, error) {
			return boolInt(a.Float("input1") != 0 && a.Float("input2") != 0), nil
		}),
		logicNode("LogicGateOrInt", "Or(Int)", "or_", pair(TypeInt, 0), TypeInt, func(a Args) (any, error) {
			return boolInt(a.Int("input1") != 0 || a.Int("input2") != 0), nil
		}),
		logicNode("LogicGateOrFloat", "Or(Float)", "or_", pair(TypeFloat, 0.0), TypeInt, func(a Args) (any, error) {
			return boolInt(a.Float("input1") != 0 || a.Float("input2") != 0), nil
		}),
		logicNode("AddInt", "Add Int", "add", pair(TypeInt, 0), TypeInt, func(a Args) (any, error) {
			return a.Int("input1") + a.Int("input2"), nil
		}),
		logicNode("AddFloat", "Add Float", "add", pair(TypeFloat, 0.0), TypeFloat, func(a Args) (any, error) {
			return a.Float("input1") + a.Float("input2"), nil
		}),
		logicNode("MergeString", "Merge String", "merge", pair(TypeString, ""), TypeString, func(a Args) (any, error) {
			return a.String("input1") + a.String("input2"), nil
		}),
	}
}
