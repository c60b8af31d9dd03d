// Package main is the lair-keystore daemon's command-line entry point: flag
// parsing, data-directory resolution, and the run-until-signalled server
// loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Connoropolous/lair-keystore/internal/config"
	"github.com/Connoropolous/lair-keystore/service"
)

// Version is the keystore's own release version, reported in
// server_info replies and the startup banner.
const Version = "0.2.0"

func main() {
	os.Exit(run())
}

// run executes the CLI and returns a process exit code, so main itself
// stays free of defers that an os.Exit would skip.
func run() int {
	var (
		showVersion bool
		lairDir     string
	)
	flag.BoolVar(&showVersion, "version", false, "print version info and exit")
	flag.BoolVar(&showVersion, "v", false, "print version info and exit (shorthand)")
	flag.StringVar(&lairDir, "lair-dir", "", "set the lair data directory (default: $LAIR_DIR)")
	flag.StringVar(&lairDir, "d", "", "set the lair data directory (shorthand)")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(envOr("LAIR_LOG_LEVEL", "info")); err == nil {
		logrus.SetLevel(level)
	}

	if showVersion {
		fmt.Printf("lair-keystore %s\n", Version)
		return 0
	}

	dataDir, err := config.ResolveDataDir(lairDir)
	if err != nil {
		logrus.WithError(err).Error("failed to resolve data directory")
		return 1
	}
	if err := config.EnsureDataDir(dataDir); err != nil {
		logrus.WithError(err).Error("failed to prepare data directory")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	srv := service.NewServer(dataDir, service.ServerInfo{Name: "lair-keystore", Version: Version})

	socketPath := config.SocketPath(dataDir)
	logrus.WithFields(logrus.Fields{"data_dir": dataDir, "socket": socketPath}).Info("starting lair-keystore")

	if err := srv.Listen(socketPath); err != nil {
		logrus.WithError(err).Error("failed to bind keystore socket")
		return 1
	}

	// the banner is the startup contract for supervising processes watching
	// stdout; it must only appear once the socket is actually bound.
	fmt.Println("#lair-keystore-ready#")
	fmt.Printf("#lair-keystore-version:%s#\n", Version)

	if err := srv.Serve(ctx, socketPath); err != nil {
		logrus.WithError(err).Error("lair-keystore server exited with error")
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupSignalHandling(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logrus.WithField("signal", sig.String()).Info("received shutdown signal")
		cancel()
	}()
}
