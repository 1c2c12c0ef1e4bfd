package nodes

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Set is the SET value passed between structure nodes. Members must be
// comparable; lists and dicts cannot be added.
type Set map[any]struct{}

// NewSet builds a set from items. It fails on the first unhashable item.
func NewSet(items ...any) (Set, error) {
	s := make(Set, len(items))
	for _, item := range items {
		if err := s.Add(item); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s Set) Add(item any) error {
	if item != nil && !reflect.TypeOf(item).Comparable() {
		return fmt.Errorf("%w: unhashable %T cannot be a set member", ErrInvalidInput, item)
	}
	s[item] = struct{}{}
	return nil
}

func (s Set) Has(item any) bool {
	if item != nil && !reflect.TypeOf(item).Comparable() {
		return false
	}
	_, ok := s[item]
	return ok
}

// Items returns the members in a stable order: by type name, then value.
func (s Set) Items() []any {
	items := slices.Collect(maps.Keys(s))
	slices.SortFunc(items, func(a, b any) int {
		return cmp.Or(
			cmp.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)),
			compareMembers(a, b),
		)
	})
	return items
}

func compareMembers(a, b any) int {
	switch a := a.(type) {
	case int64:
		return cmp.Compare(a, b.(int64))
	case float64:
		return cmp.Compare(a, b.(float64))
	case string:
		return cmp.Compare(a, b.(string))
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// MarshalJSON renders the set as a sorted JSON array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

func toDict(name string, v any) (map[string]any, error) {
	d, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: want a dict, got %T", ErrInvalidInput, name, v)
	}
	return d, nil
}

func toList(name string, v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		list := make([]any, len(l))
		for i, s := range l {
			list[i] = s
		}
		return list, nil
	}
	return nil, fmt.Errorf("%w: %s: want a list, got %T", ErrInvalidInput, name, v)
}

// toSet accepts a Set or a list, which is how sets arrive from JSON.
func toSet(name string, v any) (Set, error) {
	switch s := v.(type) {
	case Set:
		return s, nil
	case []any, []string:
		list, _ := toList(name, s)
		return NewSet(list...)
	}
	return nil, fmt.Errorf("%w: %s: want a set, got %T", ErrInvalidInput, name, v)
}

func sortedKeys(d map[string]any) []string {
	return slices.Sorted(maps.Keys(d))
}

// iterable flattens v the way a list() cast would: dicts yield their keys,
// strings their characters.
func iterable(v any) ([]any, error) {
	switch v := v.(type) {
	case map[string]any:
		keys := sortedKeys(v)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	case Set:
		return v.Items(), nil
	case string:
		out := make([]any, 0, len(v))
		for _, r := range v {
			out = append(out, string(r))
		}
		return out, nil
	}
	if list, err := toList("py_obj", v); err == nil {
		return slices.Clone(list), nil
	}
	return nil, fmt.Errorf("%w: %T is not iterable", ErrInvalidInput, v)
}

// listIndex resolves a possibly negative index against a list of n items.
func listIndex(index int64, n int) (int, error) {
	i := index
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, fmt.Errorf("%w: index %d out of range for %d items", ErrInvalidInput, index, n)
	}
	return int(i), nil
}

var (
	dictInput  = InputSpec{Name: "py_dict", Type: TypeDict}
	listInput  = InputSpec{Name: "py_list", Type: TypeList}
	setInput   = InputSpec{Name: "py_set", Type: TypeSet}
	itemInput  = InputSpec{Name: "item", Type: TypeAny}
	dictKey    = InputSpec{Name: "key", Type: TypeString, Default: "some_key"}
	setAInput  = InputSpec{Name: "py_set_a", Type: TypeSet}
	setBInput  = InputSpec{Name: "py_set_b", Type: TypeSet}
	pyObjInput = InputSpec{Name: "py_obj", Type: TypeAny}
)

func structureNode(name, displayName, function string, inputs Inputs, returns []string, run RunFunc) Definition {
	return Definition{
		Name:        name,
		DisplayName: "Pyobjects/" + displayName,
		Function:    function,
		Category:    categoryData,
		Inputs:      inputs,
		ReturnTypes: returns,
		Run:         run,
	}
}

func setOpNode(name, displayName, function string, op func(a, b Set) Set) Definition {
	return structureNode(name, displayName, function,
		Inputs{Required: []InputSpec{setAInput, setBInput}},
		[]string{TypeSet},
		func(ctx context.Context, env *Env, args Args) (Output, error) {
			return out(op(args.Any("py_set_a").(Set), args.Any("py_set_b").(Set))), nil
		})
}

// StructureNodes are the dict, list and set nodes. Dict nodes update the
// dict they are given. List nodes return a new list since a slice cannot
// grow in place for the caller.
func StructureNodes() []Definition {
	return []Definition{
		structureNode("JsonDumpAnyStructureNode", "PyStructure -> JSON", "dump_any_struct",
			Inputs{
				Required: []InputSpec{pyObjInput},
				Optional: []InputSpec{{Name: "indent", Type: TypeInt, Default: 0, Min: bound(0)}},
			},
			[]string{TypeString},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				s, err := dumpJSON(args.Any("py_obj"), int(args.Int("indent")))
				if err != nil {
					return Output{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
				}
				return out(s), nil
			}),

		structureNode("DictCreateNode", "Create Dict", "create_dict", Inputs{}, []string{TypeDict},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(map[string]any{}), nil
			}),
		structureNode("DictSetNode", "Dict Set", "dict_set",
			Inputs{Required: []InputSpec{dictInput, dictKey, {Name: "value", Type: TypeAny, Default: "some_value"}}},
			[]string{TypeDict},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				d := args.Any("py_dict").(map[string]any)
				d[args.String("key")] = args.Any("value")
				return out(d), nil
			}),
		structureNode("DictGetNode", "Dict Get", "dict_get",
			Inputs{Required: []InputSpec{dictInput, dictKey}},
			[]string{TypeAny},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(args.Any("py_dict").(map[string]any)[args.String("key")]), nil
			}),
		structureNode("DictRemoveKeyNode", "Dict Remove Key", "dict_remove_key",
			Inputs{Required: []InputSpec{dictInput, dictKey}},
			[]string{TypeDict},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				d := args.Any("py_dict").(map[string]any)
				delete(d, args.String("key"))
				return out(d), nil
			}),
		structureNode("DictMergeNode", "Dict Merge", "dict_merge",
			Inputs{
				Required: []InputSpec{{Name: "dict_a", Type: TypeDict}, {Name: "dict_b", Type: TypeDict}},
				Optional: []InputSpec{{Name: "in_place", Type: TypeBool, Default: false}},
			},
			[]string{TypeDict},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				a, b := args.Any("dict_a").(map[string]any), args.Any("dict_b").(map[string]any)
				if !args.Bool("in_place") {
					a = maps.Clone(a)
				}
				maps.Copy(a, b)
				return out(a), nil
			}),
		structureNode("DictKeysNode", "Dict Keys", "dict_keys",
			Inputs{Required: []InputSpec{dictInput}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				keys, _ := iterable(args.Any("py_dict"))
				return out(keys), nil
			}),
		structureNode("DictValuesNode", "Dict Values", "dict_values",
			Inputs{Required: []InputSpec{dictInput}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				d := args.Any("py_dict").(map[string]any)
				values := make([]any, 0, len(d))
				for _, k := range sortedKeys(d) {
					values = append(values, d[k])
				}
				return out(values), nil
			}),
		structureNode("DictItemsNode", "Dict Items", "dict_items",
			Inputs{Required: []InputSpec{dictInput}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				d := args.Any("py_dict").(map[string]any)
				items := make([]any, 0, len(d))
				for _, k := range sortedKeys(d) {
					items = append(items, []any{k, d[k]})
				}
				return out(items), nil
			}),
		{
			Name:        "DictPointer",
			DisplayName: "Pyobjects/Dict Pointer",
			Function:    "dict_pointer",
			Category:    categoryData,
			Description: "Holds on to the first dict it receives until reset, which returns the held dict once and clears it.",
			Inputs: Inputs{
				Required: []InputSpec{dictInput},
				Optional: []InputSpec{{Name: "reset", Type: TypeBool, Default: false}},
				Hidden:   []InputSpec{uniqueIDInput},
			},
			ReturnTypes: []string{TypeDict},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				key := stateKey("DictPointer", args)
				held, ok := env.State.Get(key)
				if !ok || args.Bool("reset") {
					held = args.Any("py_dict")
				}
				if args.Bool("reset") {
					env.State.Remove(key)
				} else {
					env.State.Set(key, held)
				}
				return out(held), nil
			},
		},

		structureNode("ListCreateNode", "Create List", "create_list", Inputs{}, []string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out([]any{}), nil
			}),
		structureNode("ListAppendNode", "List Append", "list_append",
			Inputs{Required: []InputSpec{listInput, itemInput}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				list := slices.Clone(args.Any("py_list").([]any))
				return out(append(list, args.Any("item"))), nil
			}),
		structureNode("ListGetNode", "List Get", "list_get",
			Inputs{Required: []InputSpec{listInput, {Name: "index", Type: TypeInt, Default: 0, Min: bound(0)}}},
			[]string{TypeAny},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				list := args.Any("py_list").([]any)
				i, err := listIndex(args.Int("index"), len(list))
				if err != nil {
					return Output{}, err
				}
				return out(list[i]), nil
			}),
		structureNode("ListRemoveNode", "List Remove", "list_remove",
			Inputs{Required: []InputSpec{listInput, itemInput}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				list := slices.Clone(args.Any("py_list").([]any))
				item := args.Any("item")
				if i := slices.IndexFunc(list, func(v any) bool { return reflect.DeepEqual(v, item) }); i >= 0 {
					list = slices.Delete(list, i, i+1)
				}
				return out(list), nil
			}),
		structureNode("ListPopNode", "List Pop", "list_pop",
			Inputs{
				Required: []InputSpec{listInput},
				Optional: []InputSpec{{Name: "index", Type: TypeInt, Default: -1}},
			},
			[]string{TypeAny, TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				list := args.Any("py_list").([]any)
				if len(list) == 0 {
					return Output{}, fmt.Errorf("%w: cannot pop from an empty list", ErrInvalidInput)
				}
				i, err := listIndex(args.Int("index"), len(list))
				if err != nil {
					return Output{}, err
				}
				return out(list[i], slices.Delete(slices.Clone(list), i, i+1)), nil
			}),
		structureNode("ListInsertNode", "List Insert", "list_insert",
			Inputs{Required: []InputSpec{listInput, {Name: "index", Type: TypeInt, Default: 0}, itemInput}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				list := args.Any("py_list").([]any)
				// out of range indexes clamp to the ends
				i := args.Int("index")
				if i < 0 {
					i = max(i+int64(len(list)), 0)
				}
				i = min(i, int64(len(list)))
				return out(slices.Insert(slices.Clone(list), int(i), args.Any("item"))), nil
			}),
		structureNode("ListExtendNode", "List Extend", "list_extend",
			Inputs{Required: []InputSpec{{Name: "list_a", Type: TypeList}, {Name: "list_b", Type: TypeList}}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(slices.Concat(args.Any("list_a").([]any), args.Any("list_b").([]any))), nil
			}),
		structureNode("ToListTypeNode", "Cast to LIST", "to_list_type",
			Inputs{Required: []InputSpec{pyObjInput}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				list, err := iterable(args.Any("py_obj"))
				if err != nil {
					return Output{}, err
				}
				return out(list), nil
			}),
		structureNode("ToSetTypeNode", "Cast to SET", "to_set_type",
			Inputs{Required: []InputSpec{pyObjInput}},
			[]string{TypeSet},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				list, err := iterable(args.Any("py_obj"))
				if err != nil {
					return Output{}, err
				}
				s, err := NewSet(list...)
				if err != nil {
					return Output{}, err
				}
				return out(s), nil
			}),

		structureNode("SetCreateNode", "Create Set", "create_set", Inputs{}, []string{TypeSet},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(Set{}), nil
			}),
		structureNode("SetAddNode", "Set Add", "set_add",
			Inputs{Required: []InputSpec{setInput, itemInput}},
			[]string{TypeSet},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				s := args.Any("py_set").(Set)
				if err := s.Add(args.Any("item")); err != nil {
					return Output{}, err
				}
				return out(s), nil
			}),
		structureNode("SetRemoveNode", "Set Remove", "set_remove",
			Inputs{Required: []InputSpec{setInput, itemInput}},
			[]string{TypeSet},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				s := args.Any("py_set").(Set)
				if item := args.Any("item"); s.Has(item) {
					delete(s, item)
				}
				return out(s), nil
			}),
		setOpNode("SetUnionNode", "Set Union", "set_union", func(a, b Set) Set {
			u := maps.Clone(a)
			maps.Copy(u, b)
			return u
		}),
		setOpNode("SetIntersectionNode", "Set Intersection", "set_intersection", func(a, b Set) Set {
			s := Set{}
			for item := range a {
				if b.Has(item) {
					s[item] = struct{}{}
				}
			}
			return s
		}),
		setOpNode("SetDifferenceNode", "Set Difference", "set_difference", func(a, b Set) Set {
			s := Set{}
			for item := range a {
				if !b.Has(item) {
					s[item] = struct{}{}
				}
			}
			return s
		}),
		setOpNode("SetSymDifferenceNode", "Set Symmetric Difference", "set_sym_difference", func(a, b Set) Set {
			s := Set{}
			for item := range a {
				if !b.Has(item) {
					s[item] = struct{}{}
				}
			}
			for item := range b {
				if !a.Has(item) {
					s[item] = struct{}{}
				}
			}
			return s
		}),
		structureNode("SetClearNode", "Set Clear", "set_clear",
			Inputs{Required: []InputSpec{setInput}},
			[]string{TypeSet},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				s := args.Any("py_set").(Set)
				clear(s)
				return out(s), nil
			}),
		structureNode("SetToListNode", "Set to List", "set_to_list",
			Inputs{Required: []InputSpec{setInput}},
			[]string{TypeList},
			func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(args.Any("py_set").(Set).Items()), nil
			}),
	}
}
