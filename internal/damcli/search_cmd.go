package damcli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/search"
)

func newSearchCommand() *cobra.Command {
	var (
		page      int
		fileTypes []string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search the asset index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			results, err := p.Search(cmd.Context(), search.Query{
				Term:      strings.Join(args, " "),
				FileTypes: fileTypes,
				Page:      page,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, r := range results {
				line := fmt.Sprintf("%.3f  %-8s %s", r.Score, r.Entry.FileType, r.Entry.Path)
				if len(r.Entry.Tags) > 0 {
					line += "  [" + strings.Join(r.Entry.Tags, ", ") + "]"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 0, "result page")
	cmd.Flags().StringSliceVarP(&fileTypes, "type", "t", nil, "restrict to file types (Model, Image, Audio, Video, Archive, Bundle)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as JSON")
	return cmd
}
