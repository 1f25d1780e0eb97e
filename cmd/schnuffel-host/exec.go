package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miampf/schnuffel"
	"github.com/miampf/schnuffel/graph"
	"github.com/miampf/schnuffel/host"
	"github.com/miampf/schnuffel/manifest"
)

type execFlags struct {
	node     string
	set      []string
	manifest string
}

func newExecCmd(g *globalFlags) *cobra.Command {
	var f execFlags

	cmd := &cobra.Command{
		Use:   "exec [source]",
		Short: "Run exec_on_node once and print the fragment as DOT",
		Long: `Load the module, apply the --set overrides, start a sandbox instance and
run exec_on_node on the --node given as Kind=value. The returned graph
fragment is printed in Graphviz DOT format.

With --manifest the source, pin, budget and overrides come from plugin.yaml;
flags given on the command line win.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			if f.node == "" {
				return errors.New("--node is required")
			}
			node, err := parseNode(f.node)
			if err != nil {
				return err
			}
			settings, err := parseSettings(f.set)
			if err != nil {
				return err
			}

			opts, cleanup, err := g.hostOptions(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if len(settings) > 0 {
				opts = append(opts, host.WithConfigOverrides(settings))
			}

			u, err := newUnloaded(args, f.manifest, opts)
			if err != nil {
				return err
			}
			c, err := u.Load(ctx)
			if err != nil {
				return err
			}
			defer schnuffel.CloseWithLog(ctx, c, nil, "plugin")

			r, err := c.Start(ctx)
			if err != nil {
				return err
			}
			defer schnuffel.CloseWithLog(ctx, r, nil, "plugin instance")

			fragment, err := r.ExecuteNode(ctx, node)
			if err != nil {
				return err
			}
			return graph.WriteDOT(cmd.OutOrStdout(), fragment)
		},
	}

	cmd.Flags().StringVarP(&f.node, "node", "n", "", "Input node as Kind=value, e.g. Domain=example.com")
	cmd.Flags().StringArrayVarP(&f.set, "set", "s", nil, "Override a configuration field (key=value, repeatable)")
	cmd.Flags().StringVarP(&f.manifest, "manifest", "m", "", "Path to plugin.yaml or a directory containing it")

	return cmd
}

func newUnloaded(args []string, manifestPath string, opts []host.Option) (*host.Unloaded, error) {
	if manifestPath == "" {
		if len(args) == 0 {
			return nil, errors.New("a module source or --manifest is required")
		}
		return host.New(args[0], opts...)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("source %q given together with --manifest", args[0])
	}
	return host.FromManifest(m, opts...)
}
