package damcli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/project"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dam",
		Short:        "Local digital-asset index and search",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringP("root", "r", ".", "project root directory")

	cmd.AddCommand(newIndexCommand())
	cmd.AddCommand(newSearchCommand())
	cmd.AddCommand(newLsCommand())
	cmd.AddCommand(newBundleCommand())
	cmd.AddCommand(newVirtualCommand())
	cmd.AddCommand(newServeCommand())
	return cmd
}

func projectRoot(cmd *cobra.Command) (string, error) {
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return "", err
	}
	return filepath.Abs(root)
}

func openProject(cmd *cobra.Command) (*project.Project, error) {
	root, err := projectRoot(cmd)
	if err != nil {
		return nil, err
	}
	return project.Open(root, project.Options{})
}
