package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"vaxbot/lib/restyutil"
	"vaxbot/lib/scrapers/doctolib"
	"vaxbot/lib/telemetry"

	"github.com/spf13/cobra"
)

var debug bool
var tel telemetry.Telemetry

var rootCmd = &cobra.Command{
	Use:   "vaxbot",
	Short: "vaxbot hunts and books COVID-19 vaccination slots on Doctolib.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(debug)

		if debug {
			dir, err := os.MkdirTemp("", "vaxbot-http-")
			if err == nil {
				doctolib.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(dir))
				slog.Debug("dumping http exchanges", "dir", dir)
			}
		}

		t, err := telemetry.SetupFromEnv(cmd.Context(), "vaxbot")
		if err != nil {
			slog.Warn("failed to set up telemetry", "err", err)
			return
		}
		tel = t
		telemetry.InstrumentPerfStats(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Warn("failed to shut down telemetry", "err", err)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "show debug information")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
