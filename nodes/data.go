package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const categoryData = "Data"

var keyInput = InputSpec{Name: "key", Type: TypeString, Default: "my_key"}

func dumpJSON(v any, indent int) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func DataNodes() []Definition {
	return []Definition{
		{
			Name:        "GlobalVarSetNode",
			DisplayName: "Pyobjects/Global Var Set",
			Function:    "global_var_set",
			Category:    categoryData,
			Inputs: Inputs{Required: []InputSpec{
				keyInput,
				{Name: "value", Type: TypeAny, Default: "my_value"},
			}},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				env.Store.Set(args.String("key"), args.Any("value"))
				return out(args.Any("value")), nil
			},
		},
		{
			Name:        "GlobalVarSetIfNotExistsNode",
			DisplayName: "Pyobjects/Global Var Set If Not Exists",
			Function:    "global_var_set",
			Category:    categoryData,
			Inputs: Inputs{Required: []InputSpec{
				keyInput,
				{Name: "value", Type: TypeAny, Default: "my_value"},
			}},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				env.Store.SetIfNotExists(args.String("key"), args.Any("value"))
				return out(args.Any("value")), nil
			},
		},
		{
			Name:        "GlobalVarGetNode",
			DisplayName: "Pyobjects/Global Var Get",
			Function:    "global_var_get",
			Category:    categoryData,
			Inputs:      Inputs{Required: []InputSpec{keyInput}},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				v, _ := env.Store.Get(args.String("key"))
				return out(v), nil
			},
		},
		{
			Name:        "GlobalVarRemoveNode",
			DisplayName: "Pyobjects/Global Var Remove",
			Function:    "global_var_remove",
			Category:    categoryData,
			Inputs:      Inputs{Required: []InputSpec{keyInput}},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(env.Store.Remove(args.String("key"))), nil
			},
		},
		{
			Name:        "GlobalVarSaveNode",
			DisplayName: "Pyobjects/Global Var Save",
			Function:    "global_var_save",
			Category:    categoryData,
			Description: "Writes the value under key to a JSON file relative to the working directory.",
			Inputs: Inputs{
				Required: []InputSpec{
					keyInput,
					{Name: "filepath", Type: TypeString, Default: "my_global_var.json"},
				},
				Optional: []InputSpec{{Name: "allow_missing", Type: TypeBool, Default: false}},
			},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				path := args.String("filepath")
				if err := env.Store.SaveJSON(args.String("key"), path, args.Bool("allow_missing")); err != nil {
					return Output{}, err
				}
				return out(path), nil
			},
		},
		{
			Name:        "GlobalVarLoadNode",
			DisplayName: "Pyobjects/Global Var Load",
			Function:    "global_var_load",
			Category:    categoryData,
			Inputs: Inputs{
				Required: []InputSpec{
					keyInput,
					{Name: "filepath", Type: TypeString, Default: "my_global_var.json"},
				},
				Optional: []InputSpec{{Name: "allow_missing", Type: TypeBool, Default: false}},
			},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				v, err := env.Store.LoadJSON(args.String("key"), args.String("filepath"), args.Bool("allow_missing"))
				if err != nil {
					return Output{}, err
				}
				return out(v), nil
			},
		},
		{
			Name:        "GlobalVarPersistNode",
			DisplayName: "Pyobjects/Global Var Persist",
			Function:    "global_var_persist",
			Category:    categoryData,
			Description: "Copies the value under key into the on-disk archive so it survives restarts.",
			Inputs:      Inputs{Required: []InputSpec{keyInput}},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				archive, err := env.archive()
				if err != nil {
					return Output{}, err
				}
				if err := archive.Persist(env.Store, args.String("key")); err != nil {
					return Output{}, err
				}
				return out(args.String("key")), nil
			},
		},
		{
			Name:        "GlobalVarRestoreNode",
			DisplayName: "Pyobjects/Global Var Restore",
			Function:    "global_var_restore",
			Category:    categoryData,
			Inputs:      Inputs{Required: []InputSpec{keyInput}},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				archive, err := env.archive()
				if err != nil {
					return Output{}, err
				}
				v, err := archive.Restore(env.Store, args.String("key"))
				if err != nil {
					return Output{}, err
				}
				return out(v), nil
			},
		},
		{
			Name:        "JsonParseNode",
			DisplayName: "Pyobjects/JSON -> PyObject",
			Function:    "parse_json",
			Category:    categoryData,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "json_string", Type: TypeString, Default: `{"key": "value"}`, Multiline: true},
			}},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				var v any
				if err := json.Unmarshal([]byte(args.String("json_string")), &v); err != nil {
					return Output{}, fmt.Errorf("%w: invalid JSON: %v", ErrInvalidInput, err)
				}
				return out(v), nil
			},
		},
		{
			Name:        "JsonDumpNode",
			DisplayName: "Pyobjects/PyObject -> JSON",
			Function:    "dump_json",
			Category:    categoryData,
			Inputs: Inputs{
				Required: []InputSpec{{Name: "py_obj", Type: TypeAny}},
				Optional: []InputSpec{{Name: "indent", Type: TypeInt, Default: 0, Min: bound(0)}},
			},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				s, err := dumpJSON(args.Any("py_obj"), int(args.Int("indent")))
				if err != nil {
					return Output{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
				}
				return out(s), nil
			},
		},
	}
}
