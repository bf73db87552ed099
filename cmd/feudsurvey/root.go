package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/feudsurvey/internal/config"
)

// envFiles are loaded in order; variables already set are never overwritten,
// so .env.local wins over .env and the real environment wins over both.
var envFiles = []string{".env.local", ".env"}

func newRootCommand() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "feudsurvey",
		Short: "Live survey answer clustering",
		Long: `feudsurvey collects free-text audience answers to a live survey question
and groups them into a few canonical, labeled clusters for an operator to
curate during the event.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			loadEnvFiles()
			setupLogging(debug)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(newServeCommand(), newClusterCommand(), newVersionCommand())
	return root
}

func loadEnvFiles() {
	for _, name := range envFiles {
		if err := godotenv.Load(name); err == nil {
			log.Debug().Str("file", name).Msg("Loaded environment file")
		}
	}
}

// setupLogging logs to stderr; --debug wins over the configured level.
func setupLogging(debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(config.Get().LogLevel))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("feudsurvey %s\n", Version)
			cmd.Printf("settings: %s\n", config.SettingsPath())
		},
	}
}
