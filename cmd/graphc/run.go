package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/graphc/internal/compiler"
	"github.com/born-ml/graphc/internal/config"
	"github.com/born-ml/graphc/internal/engine"
	"github.com/born-ml/graphc/internal/network"
	"github.com/born-ml/graphc/internal/tensor"
	"github.com/born-ml/graphc/internal/topology"
)

func newRunCmd() *cobra.Command {
	var (
		flags       compileFlags
		inputs      []string
		execWorkers int
		memLimit    int64
	)
	cmd := &cobra.Command{
		Use:   "run TOPOLOGY",
		Short: "Compile a topology, execute it once and print the outputs",
		Example: `  graphc run diamond.yaml --input input=1.1,1.2,1.3,1.4
  GRAPHC_DEBUG=2 graphc run model.yaml --input x=0,1 --input y=2,3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			topo, err := topology.Load(args[0])
			if err != nil {
				return err
			}
			opts := flags.options()
			c, err := compiler.Compile(cmd.Context(), topo, opts)
			if err != nil {
				return err
			}

			net, err := network.New(c.Program, engine.New(memLimit), network.Options{
				Workers: execWorkers,
				Log:     opts.Log,
			})
			if err != nil {
				return err
			}
			defer net.Close()

			for _, name := range net.Inputs() {
				v, ok := values[name]
				if !ok {
					return fmt.Errorf("no value for input %q (use --input %s=...)", name, name)
				}
				n, _ := c.Program.Lookup(name)
				m, err := tensor.FromFloat32(n.Output, v)
				if err != nil {
					return fmt.Errorf("input %q: %w", name, err)
				}
				if err := net.SetInput(name, m); err != nil {
					return err
				}
			}

			outputs, err := net.Execute(cmd.Context())
			if err != nil {
				return err
			}
			printOutputs(cmd.OutOrStdout(), c.Program.Outputs(), outputs)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as name=v1,v2,... in physical order")
	cmd.Flags().IntVar(&execWorkers, "exec-workers", config.ExecWorkers(), "Kernels run at once")
	cmd.Flags().Int64Var(&memLimit, "memory-limit", config.MemoryLimit(), "Engine memory limit in bytes (0 = unlimited)")
	return cmd
}

func parseInputs(args []string) (map[string][]float32, error) {
	values := make(map[string][]float32, len(args))
	for _, arg := range args {
		name, list, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --input %q, expected name=v1,v2,...", arg)
		}
		var vals []float32
		for _, s := range strings.Split(list, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
			if err != nil {
				return nil, fmt.Errorf("input %q: %w", name, err)
			}
			vals = append(vals, float32(f))
		}
		values[name] = vals
	}
	return values, nil
}

func printOutputs(w io.Writer, names []string, outputs map[string]*tensor.Memory) {
	var data [][]string
	for _, name := range slices.Sorted(slices.Values(names)) {
		m := outputs[name]
		vals := m.Float32s()
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = strconv.FormatFloat(float64(v), 'g', 6, 32)
		}
		data = append(data, []string{name, m.Layout().String(), strings.Join(parts, " ")})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"OUTPUT", "LAYOUT", "VALUES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
