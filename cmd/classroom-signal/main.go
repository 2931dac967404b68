package main

import (
	"os"

	"github.com/spf13/cobra"
	pkgconfig "github.com/weiawesome/classroom-signal/pkg/config"
	pkglog "github.com/weiawesome/classroom-signal/pkg/log"
)

var configDir string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "classroom-signal",
	Short: "WebRTC signaling and room presence for live classrooms",
	Long: `classroom-signal accepts WebSocket connections from classroom clients,
tracks who is present in which room and relays WebRTC negotiation, chat,
raised hands, mute directives and whiteboard strokes between them.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", pkgconfig.GetEnv("CONFIG_PATH", "./config"), "directory containing config.yaml")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("classroom-signal exited")
		os.Exit(1)
	}
}
