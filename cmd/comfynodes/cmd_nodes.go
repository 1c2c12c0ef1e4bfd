package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"comfynodes/fileio"
	"comfynodes/imgio"
	"comfynodes/nodes"
	"comfynodes/queue"
	"comfynodes/store"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// nodeInfo is the per node entry of the host's object_info listing.
type nodeInfo struct {
	Input       map[string]map[string][]any `json:"input"`
	Output      []string                    `json:"output"`
	OutputName  []string                    `json:"output_name"`
	Name        string                      `json:"name"`
	DisplayName string                      `json:"display_name"`
	Description string                      `json:"description"`
	Category    string                      `json:"category"`
	OutputNode  bool                        `json:"output_node"`
}

func (a *app) runNodesList(cmd *cobra.Command, args []string) error {
	registry, err := nodes.Default()
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	if asJSON {
		info := make(map[string]nodeInfo, registry.Len())
		for _, def := range registry.Definitions() {
			names := def.ReturnNames
			if names == nil {
				names = def.ReturnTypes
			}
			info[def.Name] = nodeInfo{
				Input:       def.InputTypes(),
				Output:      def.ReturnTypes,
				OutputName:  names,
				Name:        def.Name,
				DisplayName: def.DisplayName,
				Description: def.Description,
				Category:    def.Category,
				OutputNode:  def.OutputNode,
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY NAME\tCATEGORY")
	for _, def := range registry.Definitions() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, def.DisplayName, def.Category)
	}
	return w.Flush()
}

// plainNumbers turns decoded json.Number values into int64 where they are
// integral and float64 otherwise, so untyped node inputs keep integer math.
func plainNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, item := range v {
			v[k] = plainNumbers(item)
		}
	case []any:
		for i, item := range v {
			v[i] = plainNumbers(item)
		}
	}
	return v
}

func parseNodeArgs(raw string) (nodes.Args, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var decoded map[string]any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("invalid --args: %w", err)
	}
	return nodes.Args(plainNumbers(decoded).(map[string]any)), nil
}

// printable replaces tensors with a short description.
func printable(v any) any {
	if t, ok := v.(*imgio.Tensor); ok {
		return fmt.Sprintf("IMAGE tensor %v", t.Shape)
	}
	return v
}

func (a *app) runNodesRun(cmd *cobra.Command, args []string) error {
	rawArgs, _ := cmd.Flags().GetString("args")
	withArchive, _ := cmd.Flags().GetBool("archive")

	nodeArgs, err := parseNodeArgs(rawArgs)
	if err != nil {
		return err
	}
	registry, err := nodes.Default()
	if err != nil {
		return err
	}

	env, closeEnv, err := a.newEnv(withArchive)
	if err != nil {
		return err
	}
	defer closeEnv()

	result, err := registry.Invoke(cmd.Context(), env, args[0], nodeArgs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(printableOutput(result))
}

// newEnv builds the node environment, opening the archive when asked. The
// returned func releases it.
func (a *app) newEnv(withArchive bool) (*nodes.Env, func(), error) {
	env := nodes.NewEnv(a.config)
	if !withArchive {
		return env, func() {}, nil
	}
	archive, err := store.OpenArchive(a.config.Store)
	if err != nil {
		return nil, nil, err
	}
	env.Archive = archive
	return env, func() { _ = archive.Close() }, nil
}

func printableOutput(result nodes.Output) map[string]any {
	values := make([]any, len(result.Values))
	for i, v := range result.Values {
		values[i] = printable(v)
	}
	return map[string]any{"values": values, "ui": result.UI}
}

type batchEntry struct {
	Node string         `json:"node"`
	Args map[string]any `json:"args"`
}

func (a *app) runNodesBatch(cmd *cobra.Command, args []string) error {
	withArchive, _ := cmd.Flags().GetBool("archive")

	raw, err := fileio.ReadFileLocked(args[0])
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var entries []batchEntry
	if err := dec.Decode(&entries); err != nil {
		return fmt.Errorf("invalid batch file %s: %w", args[0], err)
	}

	registry, err := nodes.Default()
	if err != nil {
		return err
	}
	env, closeEnv, err := a.newEnv(withArchive)
	if err != nil {
		return err
	}
	defer closeEnv()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	q := queue.New(registry, env, len(entries))
	go q.Run(ctx)

	jobs := make([]*queue.Job, len(entries))
	for i, entry := range entries {
		nodeArgs, _ := plainNumbers(entry.Args).(map[string]any)
		if jobs[i], _, err = q.Enqueue(entry.Node, nodeArgs); err != nil {
			return err
		}
	}

	bar := progressbar.Default(int64(len(jobs)), "running nodes")
	results := make([]map[string]any, len(jobs))
	var errs []error
	for i, job := range jobs {
		output, err := job.Wait(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, job.Node, err))
			results[i] = map[string]any{"error": err.Error()}
		} else {
			results[i] = printableOutput(output)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}
	return errors.Join(errs...)
}
