// Package serve implements the serve subcommand: it opens the store,
// puts the actor in front of it and runs the line-protocol server.
package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/logger"
	"github.com/ValentinKolb/kvs/lib/store/astore"
	"github.com/ValentinKolb/kvs/lib/store/fstore"
	"github.com/ValentinKolb/kvs/server"
)

var Logger = logger.GetLogger("serve")

var (
	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the kvs line-protocol server",
		Long:  `Start the kvs server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is KVS_<flag> (e.g. KVS_ENDPOINT=0.0.0.0:4000)`,
		RunE:  run,
	}
)

func init() {
	ServeCmd.PersistentFlags().String("endpoint", "0.0.0.0:4000",
		util.WrapString("The address the server listens on (HOST:PORT)"))

	ServeCmd.PersistentFlags().Int64("timeout", 0,
		util.WrapString("Read/write timeout per connection in seconds (0 = none)"))

	ServeCmd.PersistentFlags().Int("write-buffer", 0,
		util.WrapString("Socket write buffer size in KB (0 = kernel default)"))

	ServeCmd.PersistentFlags().Int("read-buffer", 0,
		util.WrapString("Socket read buffer size in KB (0 = kernel default)"))

	ServeCmd.PersistentFlags().Bool("tcp-nodelay", true,
		util.WrapString("Whether to disable Nagle's algorithm (TCP_NODELAY)"))

	ServeCmd.PersistentFlags().Int("tcp-keepalive", 0,
		util.WrapString("TCP keepalive interval in seconds (0 = disabled)"))

	ServeCmd.PersistentFlags().Int("tcp-linger", -1,
		util.WrapString("TCP linger time in seconds (-1 = kernel default)"))
}

// run starts the kvs server
func run(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	storeCfg, err := util.GetStoreConfig()
	if err != nil {
		return err
	}

	serverCfg := server.Config{
		Endpoint:        viper.GetString("endpoint"),
		TimeoutSecond:   viper.GetInt64("timeout"),
		WriteBufferSize: viper.GetInt("write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("tcp-linger"),
	}

	inner, err := fstore.Open(storeCfg)
	if err != nil {
		return err
	}

	// the actor owns the store from here on; all network handlers go
	// through its mailbox
	st := astore.New(inner)

	srv := server.New(serverCfg, st)
	if err := srv.Listen(); err != nil {
		st.Close()
		return err
	}

	// shut down cleanly on SIGINT/SIGTERM: stop accepting, drain the
	// actor, close the log
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		Logger.Infof("Received %s, shutting down", sig)
		srv.Close()
	}()

	err = srv.Serve()

	if closeErr := st.Close(); closeErr != nil {
		Logger.Errorf("Closing store: %v", closeErr)
		if err == nil {
			err = closeErr
		}
	}
	return err
}
