package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/framelink/framelink"
	"github.com/framelink/framelink/config"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:  "run",
	RunE: run,
}

func run(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Configure logging.
	level := slog.LevelInfo
	if *logLevel != "" {
		if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", *logLevel, err)
		}
	}
	logOutput := os.Stdout
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:  true,
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isatty.IsTerminal(logOutput.Fd()),
		}),
	))

	// Set up everything.
	link, err := framelink.New(Version, c)
	if err != nil {
		return fmt.Errorf("failed to initialize framelink: %w", err)
	}

	// Finalize and start all workers.
	err = link.Start()
	if err != nil {
		return fmt.Errorf("failed to start framelink: %w", err)
	}

	// Wait for signal or session end.
	signalCh := make(chan os.Signal, 1)
	signal.Notify(
		signalCh,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	select {
	case <-signalCh:
		fmt.Println(" <INTERRUPT>") // CLI output.
		slog.Warn("program was interrupted, stopping")

		// Catch signals during shutdown.
		go func() {
			forceCnt := 5
			for {
				<-signalCh
				forceCnt--
				if forceCnt > 0 {
					fmt.Printf(" <INTERRUPT> again, but already shutting down - %d more to force\n", forceCnt)
				} else {
					printStackTo(os.Stderr, "PRINTING STACK ON FORCED EXIT")
					os.Exit(1)
				}
			}
		}()

	case <-link.Client().Done():
		// Session over: clean completion, server-initiated disconnect
		// or a fatal setup failure. Either way, shut down.

	case <-link.Done():
	}

	go func() {
		time.Sleep(time.Minute)
		printStackTo(os.Stderr, "PRINTING STACK - TAKING TOO LONG FOR SHUTDOWN")
		os.Exit(1)
	}()

	if !link.Stop() {
		slog.Error("failed to stop framelink")
		os.Exit(1)
	}

	return nil
}

func printStackTo(writer io.Writer, msg string) {
	_, err := fmt.Fprintf(writer, "===== %s =====\n", msg)
	if err == nil {
		err = pprof.Lookup("goroutine").WriteTo(writer, 1)
	}
	if err != nil {
		slog.Error("failed to write stack trace", "err", err)
	}
}
