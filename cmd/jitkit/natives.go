package main

import (
	"github.com/spf13/cobra"
)

func newNativesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "natives",
		Short: "List the natives callable from built functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := sessionOf(cmd).runtime(cmd)
			if err != nil {
				return err
			}
			reg := r.Natives()
			var rows [][]string
			for _, name := range reg.Names() {
				n, ok := reg.Lookup(name)
				if !ok {
					continue
				}
				variadic := ""
				if n.Variadic {
					variadic = "yes"
				}
				rows = append(rows, []string{name, n.Signature().String(), variadic})
			}
			writeTable(cmd.OutOrStdout(), []string{"NAME", "SIGNATURE", "VARIADIC"}, rows)
			return nil
		},
	}
}
