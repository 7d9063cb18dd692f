package damcli

import (
	"github.com/spf13/cobra"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damd"
)

func newServeCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON-RPC daemon a frontend connects to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := damd.NewServer(damd.Options{Listen: listen})
			go func() {
				<-cmd.Context().Done()
				_ = s.Close()
			}()
			return s.Run()
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "127.0.0.1:7343", "listen address (tcp)")
	return cmd
}
