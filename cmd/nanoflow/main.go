package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/coffersTech/nanoflow/internal/config"
	"github.com/coffersTech/nanoflow/internal/engine"
	"github.com/coffersTech/nanoflow/internal/server"
	"github.com/coffersTech/nanoflow/internal/storage"
)

func main() {
	// Command-line flags
	configPath := flag.String("config", "pipeline.yaml", "Pipeline topology file")
	port := flag.Int("port", 0, "HTTP ingest port (0 disables the HTTP edge)")
	runFor := flag.Duration("run", 0, "Run duration before cancelling (0 = until signal)")
	retentionStr := flag.String("retention", "168h", "Snapshot retention duration (e.g. 72h)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Logger setup
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	retention, err := time.ParseDuration(*retentionStr)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid retention duration")
	}

	log.Info().Str("config", *configPath).Msg("nanoflow starting")

	// 1. Load and assemble the pipeline
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load pipeline config")
	}
	asm, err := cfg.Build(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}
	log.Info().Str("pipeline", cfg.Pipeline).Int("nodes", len(cfg.Nodes)).Msg("pipeline assembled")

	// 2. Sweep expired snapshots in every sink directory
	for _, sink := range asm.FileSinks {
		storage.PurgeExpired(sink.Dir(), retention, log)
	}

	// 3. Start the HTTP edge, if requested
	var srv *server.IngestServer
	srvCtx, srvCancel := context.WithCancel(context.Background())
	defer srvCancel()
	if *port > 0 {
		mailbox := singleMailbox(asm)
		if mailbox == nil {
			log.Fatal().Msg("HTTP ingest requires exactly one mailbox source in the topology")
		}
		srv = server.NewIngestServer(asm.Pipeline, mailbox, log)
		srv.StartRateTicker(srvCtx, 1*time.Second)
		addr := fmt.Sprintf(":%d", *port)
		go func() {
			log.Info().Str("addr", addr).Msg("ingest listening")
			if err := srv.Start(addr); err != nil {
				log.Error().Err(err).Msg("ingest server stopped")
			}
		}()
	}

	// 4. Drive the pipeline on its own scheduling goroutine
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	done := make(chan error, 1)
	go func() {
		done <- asm.Pipeline.Run(runCtx)
	}()

	// 5. Wait for completion, the run timeout or a signal
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var timeout <-chan time.Time
	if *runFor > 0 {
		timer := time.NewTimer(*runFor)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("pipeline failed")
		}
	case <-timeout:
		log.Info().Dur("run", *runFor).Msg("run duration reached, shutting down")
		shutdown(log, asm, srv, cancelRun, done)
	case <-sigCtx.Done():
		log.Info().Msg("signal received, shutting down")
		shutdown(log, asm, srv, cancelRun, done)
	}

	// 6. Flush buffered sink records to snapshots
	for name, sink := range asm.FileSinks {
		path, err := sink.Flush()
		if err != nil {
			log.Error().Err(err).Str("sink", name).Msg("final flush failed")
		} else if path != "" {
			log.Info().Str("sink", name).Str("path", path).Msg("snapshot written")
		}
	}

	stats := asm.Pipeline.Stats()
	log.Info().
		Int64("processed", stats.Processed).
		Int64("delivered", stats.Delivered).
		Int64("filtered", stats.Filtered).
		Int64("eval_errors", stats.EvalErrors).
		Int64("cancelled_in_flight", stats.CancelledInFlight).
		Msg("nanoflow exited")
}

// shutdown closes the intake, stops the HTTP edge, gives the pipeline a
// drain grace period and only then cancels it outright.
func shutdown(log zerolog.Logger, asm *config.Assembled, srv *server.IngestServer, cancelRun context.CancelFunc, done <-chan error) {
	for _, mb := range asm.Mailboxes {
		mb.Close()
	}
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("ingest shutdown error")
		}
	}

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("pipeline failed during drain")
		}
	case <-time.After(5 * time.Second):
		log.Warn().Msg("drain grace period elapsed, cancelling pipeline")
		cancelRun()
		<-done
	}
}

func singleMailbox(asm *config.Assembled) *engine.Mailbox {
	if len(asm.Mailboxes) != 1 {
		return nil
	}
	for _, mb := range asm.Mailboxes {
		return mb
	}
	return nil
}
