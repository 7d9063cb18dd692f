package damcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/bundle"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

func newVirtualCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "virtual",
		Short: "Virtual bundle management",
	}
	cmd.AddCommand(newVirtualAddCommand())
	cmd.AddCommand(newVirtualListCommand())
	cmd.AddCommand(newVirtualRemoveCommand())
	cmd.AddCommand(newVirtualConvertCommand())
	return cmd
}

func newVirtualAddCommand() *cobra.Command {
	var (
		desc, sourceURL, license string
		tags                     []string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a bundle that exists only as metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			id, err := p.Virtual().Insert(model.BundleInfo{
				Name:        args[0],
				Description: desc,
				Tags:        tags,
				SourceURL:   sourceURL,
				License:     license,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "bundle description")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "bundle tags")
	cmd.Flags().StringVar(&sourceURL, "url", "", "source URL the bundle can be fetched from")
	cmd.Flags().StringVar(&license, "license", "", "license identifier")
	return cmd
}

func newVirtualListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List virtual bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			infos, err := p.Virtual().List()
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", info.ID, info.Name)
			}
			return nil
		},
	}
}

func newVirtualRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a virtual bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()
			return p.Virtual().Remove(args[0])
		},
	}
}

func newVirtualConvertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <id> <dest>",
		Short: "Materialize a virtual bundle on disk from its source URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			return p.ConvertVirtual(cmd.Context(), args[0], bundle.HTTPFetcher{}, args[1])
		},
	}
}
