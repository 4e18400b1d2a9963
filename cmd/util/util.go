// Package util provides the configuration plumbing shared by all CLI
// subcommands: flag registration, environment binding and conversion
// into the typed store configuration.
package util

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/kvs/lib/logger"
	"github.com/ValentinKolb/kvs/lib/store/fstore"
	"github.com/ValentinKolb/kvs/lib/wal"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables. The
// format is KVS_<flag> with dashes replaced by underscores (e.g.
// KVS_MAX_LOG_SIZE=1048576).
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("kvs")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// SetupStoreFlags adds the flags every subcommand touching the store
// understands
func SetupStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log", fstore.DefaultLogPath,
		WrapString("Path of the log file. Its directory holds all snapshots and the manifest"))

	cmd.PersistentFlags().String("durability", "flush",
		WrapString("When appended bytes reach stable storage: flush, fsync or fsync-every-n:N"))

	cmd.PersistentFlags().Int64("max-log-size", 0,
		WrapString("Automatically snapshot once the log reaches this many bytes (0 = disabled)"))

	cmd.PersistentFlags().String("log-level", "info",
		WrapString("Log verbosity (debug, info, warn, error)"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStoreConfig reads the store configuration from viper and applies
// the log level
func GetStoreConfig() (fstore.Config, error) {
	durability, err := wal.ParsePolicy(viper.GetString("durability"))
	if err != nil {
		return fstore.Config{}, err
	}

	level, err := logger.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fstore.Config{}, err
	}
	if DebugEnabled() {
		level = logger.DEBUG
	}
	logger.SetGlobalLevel(level)

	return fstore.Config{
		LogPath:    viper.GetString("log"),
		Durability: durability,
		MaxLogSize: viper.GetInt64("max-log-size"),
	}, nil
}

// DebugEnabled reports whether KVS_DEBUG=1 is set. It expands error
// output and forces debug-level logging.
func DebugEnabled() bool {
	return os.Getenv("KVS_DEBUG") == "1"
}
