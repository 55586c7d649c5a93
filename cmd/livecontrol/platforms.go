package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/spf13/cobra"
)

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported platforms and what they can do",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := newPlatformRegistry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFEATURES\tLOGIN URL")
			for _, info := range reg.List() {
				p, err := reg.New(info.ID)
				if err != nil {
					return err
				}
				features := strings.Join(platform.Capabilities(p), ",")
				if features == "" {
					features = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Name, features, info.LoginURL)
			}
			return w.Flush()
		},
	}
}
