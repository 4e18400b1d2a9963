package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ValentinKolb/kvs/cmd/kv"
	"github.com/ValentinKolb/kvs/cmd/serve"
	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/store"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvs",
		Short: "persistent key-value store",
		Long: fmt.Sprintf(`kvs (v%s)

A persistent, crash-safe key-value store with an append-only log,
snapshot compaction and a netcat-friendly line-protocol server.`, Version),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvs v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add store flags to the root so every subcommand shares them
	util.SetupStoreFlags(RootCmd)

	// Add Commands
	for _, c := range kv.Commands() {
		RootCmd.AddCommand(c)
	}
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if store.CodeOf(err) == store.RetCCorruptLog {
			fmt.Fprintln(os.Stderr, "hint: the log appears corrupted (not just a torn write). Move the log file away and try again.")
		}
		if util.DebugEnabled() {
			fmt.Fprintf(os.Stderr, "debug: %+v\n", err)
		}
		os.Exit(1)
	}
}
