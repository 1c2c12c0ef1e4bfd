package nodes

import (
	"context"
	"fmt"
)

// Input and return type names understood by the host.
const (
	TypeImage  = "IMAGE"
	TypeInt    = "INT"
	TypeFloat  = "FLOAT"
	TypeString = "STRING"
	TypeBool   = "BOOLEAN"
	TypeCombo  = "COMBO"
	TypeList   = "LIST"
	TypeDict   = "DICT"
	TypeSet    = "SET"
	TypeAny    = "*"
	// TypeUniqueID is the hidden input through which the host passes the id
	// of the node instance in its graph.
	TypeUniqueID = "UNIQUE_ID"
)

type (
	// RunFunc is the body of a node. It receives arguments already defaulted
	// and coerced to the declared input types.
	RunFunc func(ctx context.Context, env *Env, args Args) (Output, error)

	InputSpec struct {
		Name    string `validate:"required"`
		Type    string `validate:"required"`
		Default any
		Min     *float64
		Max     *float64
		Step    *float64
		// Options lists the accepted values of a COMBO input.
		Options   []string `validate:"required_if=Type COMBO"`
		Multiline bool
	}

	Inputs struct {
		Required []InputSpec `validate:"dive"`
		Optional []InputSpec `validate:"dive"`
		Hidden   []InputSpec `validate:"dive"`
	}

	Definition struct {
		// Name is the class name the host registers the node under.
		Name        string `validate:"required"`
		DisplayName string `validate:"required"`
		Function    string `validate:"required"`
		Category    string `validate:"required"`
		Description string
		Inputs      Inputs
		ReturnTypes []string `validate:"required_without=OutputNode,dive,required"`
		ReturnNames []string
		OutputNode  bool
		Run         RunFunc `validate:"required"`
	}

	// Output is what a node hands back to the host: positional values
	// matching ReturnTypes and an optional UI payload for output nodes.
	Output struct {
		Values []any
		UI     map[string]any
	}
)

func out(values ...any) Output {
	return Output{Values: values}
}

func bound(v float64) *float64 {
	return &v
}

var uniqueIDInput = InputSpec{Name: "unique_id", Type: TypeUniqueID}

// stateKey names the Env.State slot of one node instance. Invocations
// without a unique_id share a single slot per node.
func stateKey(node string, args Args) string {
	return fmt.Sprintf("%s#%v", node, args.Any("unique_id"))
}
