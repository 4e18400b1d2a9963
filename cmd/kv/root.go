// Package kv implements the one-shot store subcommands: each command
// opens the store, performs its operation and closes the store again.
package kv

import (
	"github.com/spf13/cobra"

	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/store/fstore"
)

// Commands returns the key-value subcommands added to the root command
func Commands() []*cobra.Command {
	return []*cobra.Command{setCmd, getCmd, delCmd, scanCmd, snapshotCmd, infoCmd}
}

// withStore opens the configured store, runs fn and closes the store.
// The close error wins only if fn succeeded, so a failed operation is
// never masked.
func withStore(cmd *cobra.Command, fn func(s *fstore.Store) error) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	cfg, err := util.GetStoreConfig()
	if err != nil {
		return err
	}

	s, err := fstore.Open(cfg)
	if err != nil {
		return err
	}

	if err := fn(s); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}
