package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/azybler/roadnet/pkg/network"
)

func (a *app) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the network from its source and refresh the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.openSource(cmd.Context())
			if err != nil {
				return err
			}
			store, release, err := a.openStore()
			if err != nil {
				return err
			}
			defer release()

			_, diag, err := network.Build(cmd.Context(), src, store, a.buildOptions()...)
			out := cmd.OutOrStdout()
			for _, line := range diag.Lines() {
				fmt.Fprintln(out, line)
			}
			return err
		},
	}
}
