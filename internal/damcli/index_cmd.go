package damcli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/task"
)

func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index management",
	}
	cmd.AddCommand(newIndexBuildCommand())
	cmd.AddCommand(newIndexExportCommand())
	return cmd
}

func newIndexBuildCommand() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the asset index from disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			if !quiet {
				p.Scheduler().SetListener(func(ev task.Event) {
					if ev.Type == task.EventUpdated && ev.Task.Status == task.StatusRunning {
						fmt.Fprintf(cmd.ErrOrStderr(), "\r%3.0f%%", ev.Task.Progress*100)
					}
				})
			}

			snap := p.Reindex().Wait()
			if !quiet {
				fmt.Fprint(cmd.ErrOrStderr(), "\r")
			}
			if snap.Status != task.StatusCompleted {
				return fmt.Errorf("reindex %s: %s", snap.Status, snap.Err)
			}

			n, err := p.Index().Count()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d assets\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}

func newIndexExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the index as a compressed snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := p.Index().Export(f); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
}
