package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/born-ml/graphc/internal/compiler"
	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/memdeps"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/topology"
)

// compileFlags are shared by compile and run.
type compileFlags struct {
	noOptimize bool
	noReuse    bool
	disable    []string
	passes     []string
	outputs    []string
	workers    int
}

func (f *compileFlags) register(cmd *cobra.Command) {
	defaults := compiler.DefaultOptions()
	cmd.Flags().BoolVar(&f.noOptimize, "no-optimize", false, "Skip the optimization pipeline")
	cmd.Flags().BoolVar(&f.noReuse, "no-reuse", false, "Give every node its own buffer")
	cmd.Flags().StringSliceVar(&f.disable, "disable-pass", defaults.Disabled, "Passes to skip")
	cmd.Flags().StringSliceVar(&f.passes, "passes", nil, "Pass pipeline in order (default: standard pipeline)")
	cmd.Flags().StringSliceVar(&f.outputs, "output", nil, "Output nodes (default: from the topology)")
	cmd.Flags().IntVar(&f.workers, "compile-workers", defaults.Workers, "Concurrent kernel compilations")
}

func (f *compileFlags) options() compiler.Options {
	return compiler.Options{
		Optimize:    !f.noOptimize,
		Passes:      f.passes,
		Disabled:    f.disable,
		Outputs:     f.outputs,
		MemoryReuse: !f.noReuse,
		Workers:     f.workers,
		Log:         logrus.NewEntry(logrus.StandardLogger()),
	}
}

func newCompileCmd() *cobra.Command {
	var flags compileFlags
	cmd := &cobra.Command{
		Use:   "compile TOPOLOGY",
		Short: "Compile a topology and print the optimized program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := topology.Load(args[0])
			if err != nil {
				return err
			}
			c, err := compiler.Compile(cmd.Context(), topo, flags.options())
			if err != nil {
				return err
			}
			printProgram(cmd.OutOrStdout(), c)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printProgram(w io.Writer, c *compiler.Compiled) {
	p := c.Program

	var data [][]string
	for _, n := range p.Nodes() {
		var inputs []string
		for _, in := range n.Inputs {
			inputs = append(inputs, p.Node(in.Node).Name)
		}
		kernel := ""
		if k, ok := p.Kernel(n.ID); ok {
			kernel = k.Name()
		}
		data = append(data, []string{
			n.Name,
			string(n.Kind()),
			strings.Join(inputs, ","),
			n.Output.String(),
			fusedOrigins(n),
			kernel,
			buffer(p, n),
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"NODE", "KIND", "INPUTS", "OUTPUT", "FUSED", "KERNEL", "BUFFER"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintln(w)
	for _, r := range c.Passes {
		fmt.Fprintf(w, "pass %-28s eliminated %d\n", r.Pass, r.Eliminated)
	}
	if c.Memory != nil {
		fmt.Fprintf(w, "buffers %d, reused %d\n", c.Memory.Buffers, len(c.Memory.Reuse))
	}
	fmt.Fprintf(w, "outputs %s\n", strings.Join(p.Outputs(), ","))
}

func fusedOrigins(n *graph.Node) string {
	var parts []string
	for _, op := range n.FusedOps {
		parts = append(parts, fmt.Sprintf("%s(%s)", op.Signature(), op.Origin))
	}
	return strings.Join(parts, "+")
}

// buffer describes where n's output lives.
func buffer(p *graph.Program, n *graph.Node) string {
	switch {
	case n.Kind() == ops.KindInputLayout:
		return "caller"
	case ops.AliasedInput(n.Op) >= 0:
		return "alias " + p.Node(memdeps.Root(p, n.ID)).Name
	}
	if donor, ok := p.ReusedBuffer(n.ID); ok {
		return "reuse " + p.Node(donor).Name
	}
	return "own"
}
