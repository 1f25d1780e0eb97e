package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miampf/schnuffel"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config <source>",
		Short: "Print the configuration fields a module declares",
		Long: `Load the module, call its default_config entry point and print every
declared field as name=value, in declaration order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			opts, cleanup, err := g.hostOptions(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			c, err := schnuffel.Load(ctx, args[0], opts...)
			if err != nil {
				return err
			}
			defer schnuffel.CloseWithLog(ctx, c, nil, "plugin")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s sha256:%s\n", c.Manifest().Source, c.Manifest().Digest)
			for _, f := range c.Config().Fields() {
				fmt.Fprintf(out, "%s=%s\n", f.Name, f.Value)
			}
			return nil
		},
	}
}
