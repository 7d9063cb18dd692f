package damcli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

func newBundleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Bundle management",
	}
	cmd.AddCommand(newBundleListCommand())
	cmd.AddCommand(newBundleCreateCommand())
	cmd.AddCommand(newBundleDeleteCommand())
	cmd.AddCommand(newBundleInfoCommand())
	cmd.AddCommand(newBundleMoveCommand())
	return cmd
}

func newBundleListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			var bundles []store.Entry
			err = p.Index().ForEach(func(e store.Entry) error {
				if e.FileType == string(model.TypeBundle) {
					bundles = append(bundles, e)
				}
				return nil
			})
			if err != nil {
				return err
			}
			sort.Slice(bundles, func(i, j int) bool { return bundles[i].Path < bundles[j].Path })

			out := cmd.OutOrStdout()
			for _, e := range bundles {
				marker := " "
				if e.Virtual {
					marker = "V"
				}
				fmt.Fprintf(out, "%s %s\n", marker, e.Path)
			}
			return nil
		},
	}
}

func newBundleCreateCommand() *cobra.Command {
	var (
		name, desc, sourceURL, license string
		tags                           []string
	)
	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Mark a directory or archive as a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			return p.CreateBundle(cmd.Context(), args[0], model.SidecarMeta{
				Name:        name,
				Description: desc,
				Tags:        tags,
				SourceURL:   sourceURL,
				License:     license,
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "bundle display name (defaults to the path base)")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "bundle description")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "bundle tags")
	cmd.Flags().StringVar(&sourceURL, "url", "", "source URL")
	cmd.Flags().StringVar(&license, "license", "", "license identifier")
	return cmd
}

func newBundleDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Remove a bundle marker, keeping the contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()
			return p.DeleteBundle(cmd.Context(), args[0])
		},
	}
}

func newBundleInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "Show bundle metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			info, err := p.BundleInfo(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}

func newBundleMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move a bundle and its marker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()
			return p.MoveBundle(cmd.Context(), args[0], args[1])
		},
	}
}
