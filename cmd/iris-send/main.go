package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pchan37/iris/cipher"
	"github.com/pchan37/iris/frame"
	"github.com/pchan37/iris/progress"
	"github.com/pchan37/iris/protocol"
	"github.com/pchan37/iris/sender"
	"github.com/pchan37/iris/wordlist"
)

var (
	flagServer string
	flagCipher string
)

var rootCmd = &cobra.Command{
	Use:   "iris-send <file|dir>...",
	Short: "Send one or more files or directories over Iris",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServer, "server", os.Getenv("IRIS_SERVER"), "relay address, host:port (env: IRIS_SERVER)")
	flags.StringVar(&flagCipher, "cipher", "xchacha20poly1305", "aes256gcm|xchacha20poly1305")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("iris-send failed")
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

func runSend(cmd *cobra.Command, args []string) error {
	if flagServer == "" {
		return fmt.Errorf("--server is required")
	}
	cipherType, err := cipher.ParseCLIFlag(flagCipher)
	if err != nil {
		return err
	}

	conn, err := frame.DialTCP(flagServer)
	if err != nil {
		return err
	}
	defer conn.Close()

	secret := wordlist.Generate()
	worker, driver := progress.NewChannelPair()

	go watchProgress(driver, secret)

	if err := sender.Send(conn, cipherType, secret, args, worker); err != nil {
		return err
	}
	log.Info().Msg("transfer complete")
	return nil
}

func watchProgress(driver progress.DriverHandle, secret string) {
	for ev := range driver.Events() {
		switch ev.Kind {
		case progress.EventAssignedRoomIdentifier:
			fmt.Printf("%d-%s\n", ev.RoomIdentifier, secret)
		case progress.EventTransferMetadata:
			log.Info().Int("files", ev.TotalFiles).Uint64("bytes", ev.TotalBytes).Msg("sending")
		case progress.EventFileDone:
			log.Debug().Str("file", ev.Filename).Msg("sent")
		case progress.EventFileSkipped:
			log.Debug().Str("file", ev.Filename).Msg("receiver skipped")
		}
	}
}
