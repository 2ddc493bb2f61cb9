package commands

import (
	"fmt"

	"github.com/leapstack-labs/lineagebench/internal/ui"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Chart recorded benchmark results in the browser",
		Long: `Start a local web server charting pipeline time, lineage time and
table growth per simulated day.

With watch enabled, pages refresh while a bench in another terminal records
new days.`,
		Example: `  # Serve on the default port
  lineagebench serve

  # Custom port without live refresh
  lineagebench serve --port 3000 --watch=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)

			store, err := openStore(cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			server := ui.NewServer(ui.Config{
				Store:     store,
				StatePath: cc.Cfg.StatePath,
				Port:      cc.Cfg.UI.Port,
				Watch:     cc.Cfg.UI.Watch,
				Dev:       dev,
				Logger:    cc.Logger,
			})

			cc.Renderer.Println(fmt.Sprintf("Serving charts on http://localhost:%d", cc.Cfg.UI.Port))
			cc.Renderer.Println("Press Ctrl+C to stop")

			return server.Serve(cmd.Context())
		},
	}

	// Values reach the server through the config loader.
	cmd.Flags().Int("port", 0, "Port to serve on (default: 8766)")
	cmd.Flags().Bool("watch", true, "Refresh pages when the state database changes")
	cmd.Flags().BoolVar(&dev, "dev", false, "Serve assets from disk and enable live reload")
	_ = cmd.Flags().MarkHidden("dev")

	return cmd
}
