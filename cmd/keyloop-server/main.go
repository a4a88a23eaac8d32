// Command keyloop-server runs the in-memory key-value server: a
// single-threaded, poll()-driven event loop handling the length-prefixed
// binary protocol described in internal/wire, backed by the progressive
// hash map, AVL-indexed sorted sets, and TTL/idle-eviction timers in the
// sibling internal packages.
//
// There is no configuration file and no environment variable support by
// design — every tunable below is a command-line flag with a sane
// compile-time default, and that is the entire configuration surface.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 1234, "TCP port to listen on")
	workers := flag.Int("workers", 4, "worker pool size for offloaded large-value destructors")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	var log *zap.Logger
	var err error
	if *debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	srv, err := NewServer(log, *port, *workers)
	if err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
	defer srv.Close()

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info("caught signal, shutting down", zap.String("signal", s.String()))
		close(stop)
	}()

	log.Info("server starting", zap.Int("port", *port))
	if err := srv.Run(stop); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}
