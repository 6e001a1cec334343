package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pchan37/iris/frame"
	"github.com/pchan37/iris/progress"
	"github.com/pchan37/iris/protocol"
	"github.com/pchan37/iris/receiver"
)

var (
	flagServer     string
	flagPassphrase string
	flagMode       string
	flagDestRoot   string
)

var rootCmd = &cobra.Command{
	Use:   "iris-receive",
	Short: "Receive files or directories sent over Iris",
	RunE:  runReceive,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServer, "server", os.Getenv("IRIS_SERVER"), "relay address, host:port (env: IRIS_SERVER)")
	flags.StringVar(&flagPassphrase, "passphrase", "", "<room>-<secret>, as printed by iris-send")
	flags.StringVar(&flagMode, "conflicting-file-mode", "error", "overwrite|skip|resume|error")
	flags.StringVar(&flagDestRoot, "dest", ".", "directory to write received entries under")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("iris-receive failed")
		os.Exit(exitCode(err))
	}
}

// exitCode honors spec.md §6's contract: 0 on success, 1 when the
// transfer was stopped by its own driver, 2 for every other failure
// (protocol, IO, or CLI usage).
func exitCode(err error) int {
	var protoErr *protocol.Error
	if errors.As(err, &protoErr) && protoErr.Kind == protocol.KindCancelled {
		return 1
	}
	return 2
}

func runReceive(cmd *cobra.Command, args []string) error {
	if flagServer == "" {
		return fmt.Errorf("--server is required")
	}
	if flagPassphrase == "" {
		return fmt.Errorf("--passphrase is required")
	}
	mode, err := receiver.ParseConflictingFileMode(flagMode)
	if err != nil {
		return err
	}
	id, secret, err := receiver.SplitPassphrase(flagPassphrase)
	if err != nil {
		return err
	}

	conn, err := frame.DialTCP(flagServer)
	if err != nil {
		return err
	}
	defer conn.Close()

	worker, driver := progress.NewChannelPair()
	go watchProgress(driver)

	if err := receiver.Receive(conn, id, secret, flagDestRoot, mode, worker); err != nil {
		return err
	}
	log.Info().Msg("transfer complete")
	return nil
}

func watchProgress(driver progress.DriverHandle) {
	for ev := range driver.Events() {
		switch ev.Kind {
		case progress.EventTransferMetadata:
			log.Info().Int("files", ev.TotalFiles).Uint64("bytes", ev.TotalBytes).Msg("receiving")
		case progress.EventDirectoryCreated:
			log.Debug().Str("dir", ev.Filename).Msg("created")
		case progress.EventFileDone:
			log.Debug().Str("file", ev.Filename).Msg("received")
		case progress.EventFileSkipped:
			log.Debug().Str("file", ev.Filename).Msg("skipped")
		}
	}
}
