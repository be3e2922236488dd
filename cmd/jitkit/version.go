package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"jitkit/internal/version"
)

func newVersionCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show jitkit build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := collectVersionInfo()
			switch strings.ToLower(format) {
			case "pretty":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Pretty())
				return err
			case "json":
				return renderVersionJSON(cmd.OutOrStdout(), info)
			default:
				return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "pretty", "output format (pretty|json)")
	return cmd
}

func collectVersionInfo() version.Info {
	info := version.Current()
	info.Version = strings.TrimSpace(info.Version)
	if info.Version == "" {
		info.Version = "dev"
	}
	info.GitCommit = strings.TrimSpace(info.GitCommit)
	info.GitMessage = strings.TrimSpace(info.GitMessage)
	info.BuildDate = strings.TrimSpace(info.BuildDate)
	return info
}

func renderVersionJSON(out io.Writer, info version.Info) error {
	s, err := info.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, s)
	return err
}
