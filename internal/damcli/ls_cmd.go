package damcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

func newLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List one level of the asset namespace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			rel := ""
			if len(args) == 1 {
				rel = args[0]
			}
			nodes, err := p.List(cmd.Context(), rel)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				marker := " "
				switch {
				case n.FileType == model.TypeBundle:
					marker = "B"
				case n.Kind == model.KindDir:
					marker = "d"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s\n", marker, n.FileType, n.Path)
			}
			return nil
		},
	}
}
