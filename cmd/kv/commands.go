package kv

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ValentinKolb/kvs/lib/store/fstore"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *fstore.Store) error {
				if err := s.Set([]byte(args[0]), []byte(args[1])); err != nil {
					return err
				}
				fmt.Println("OK")
				return nil
			})
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *fstore.Store) error {
				value, found, err := s.Get([]byte(args[0]))
				if err != nil {
					return err
				}
				if !found {
					fmt.Println("(nil)")
					return nil
				}
				os.Stdout.Write(value)
				fmt.Println()
				return nil
			})
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair, printing 1 if it existed and 0 otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *fstore.Store) error {
				existed, err := s.Delete([]byte(args[0]))
				if err != nil {
					return err
				}
				if existed {
					fmt.Println("1")
				} else {
					fmt.Println("0")
				}
				return nil
			})
		},
	}

	scanCmd = &cobra.Command{
		Use:   "scan [prefix]",
		Short: "Lists all keys sharing the given prefix (or all keys)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *fstore.Store) error {
				var prefix []byte
				if len(args) > 0 {
					prefix = []byte(args[0])
				}
				keys, err := s.Scan(prefix)
				if err != nil {
					return err
				}
				for _, key := range keys {
					os.Stdout.Write(key)
					fmt.Println()
				}
				return nil
			})
		},
	}

	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Compacts the store into a new snapshot and rotates the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *fstore.Store) error {
				gen, err := s.Snapshot()
				if err != nil {
					return err
				}
				fmt.Printf("snapshot-%04d\n", gen)
				return nil
			})
		},
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints store metadata as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *fstore.Store) error {
				info, err := s.Info()
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
)
