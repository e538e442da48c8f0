package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"fluxrescue/internal/cpufeat"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version and detected decode kernels",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fluxrescue %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
			features := cpufeat.Detect()
			fmt.Fprintf(out, "cpu features: %s, decode kernels: %s\n",
				features.Name(), cpufeat.Select(features).Name())
			return nil
		},
	}
}
