package main

import (
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pchan37/iris/relay"
)

var flagWorkerPoolSize int

var rootCmd = &cobra.Command{
	Use:   "iris-relay <ip> <port>",
	Short: "Run the Iris rendezvous relay",
	Args:  cobra.ExactArgs(2),
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagWorkerPoolSize, "worker-pool-size", relay.DefaultWorkerPoolSize, "bounded pool size for active relay sessions")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("iris-relay exited")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := net.JoinHostPort(args[0], args[1])
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", addr).Msg("listening")

	r := relay.New(ln, flagWorkerPoolSize, log.Logger)
	return r.Serve()
}
