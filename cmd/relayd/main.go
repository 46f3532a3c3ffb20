// Command relayd runs a single RELAY actor system as a long-lived daemon: it
// binds the socket server, starts the system root's receive loop, and
// blocks until an operator signal or a fatal networking error.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	btclog "github.com/btcsuite/btclog/v2"
	"github.com/relaysys/relay/internal/baselib/actor"
	"github.com/relaysys/relay/internal/build"
	"github.com/relaysys/relay/internal/deadletter"
)

func main() {
	var (
		host           = flag.String("host", "127.0.0.1", "Address to bind the socket server to")
		port           = flag.Int("port", 9600, "Port to bind the socket server to")
		hmacKeyFile    = flag.String("hmac-key-file", "", "Path to a file containing the shared HMAC secret (required)")
		deadLetterDB   = flag.String("dead-letter-db", "~/.relay/deadletters.db", "Path to the dead letter audit SQLite database (empty to disable)")
		logDir         = flag.String("log-dir", "~/.relay/logs", "Directory for log files (empty to disable file logging)")
		maxLogFiles    = flag.Int("max-log-files", build.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogFileSize = flag.Int("max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
		shutdownGrace  = flag.Duration("shutdown-grace", actor.DefaultShutdownGrace, "Graceful shutdown timeout")
	)
	flag.Parse()

	if *hmacKeyFile == "" {
		log.Fatal("-hmac-key-file is required")
	}

	logDirExpanded := expandHome(*logDir)
	dbPathExpanded := expandHome(*deadLetterDB)

	var logRotator *build.RotatingLogWriter
	if logDirExpanded != "" {
		logRotator = build.NewRotatingLogWriter()
		err := logRotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDirExpanded,
			MaxLogFiles:    *maxLogFiles,
			MaxLogFileSize: *maxLogFileSize,
		})
		if err != nil {
			log.Printf("failed to init log rotator: %v (continuing without file logging)", err)
			logRotator = nil
		} else {
			defer logRotator.Close()
		}
	}

	var handlers []btclog.Handler
	handlers = append(handlers, btclog.NewDefaultHandler(os.Stderr))
	if logRotator != nil {
		handlers = append(handlers, btclog.NewDefaultHandler(logRotator))
	}
	combined := build.NewHandlerSet(handlers...)
	daemonLogger := btclog.NewSLogger(combined)

	actor.UseLogger(daemonLogger.WithPrefix("ACTR"))
	deadletter.UseLogger(daemonLogger.WithPrefix("DLQ"))

	hmacKey, err := os.ReadFile(*hmacKeyFile)
	if err != nil {
		log.Fatalf("failed to read hmac key file: %v", err)
	}
	sec := actor.DefaultSecurityConfig(hmacKey)

	var dl actor.DeadLetterSink
	if dbPathExpanded != "" {
		store, err := deadletter.Open(dbPathExpanded, deadletter.DefaultQueueSize)
		if err != nil {
			log.Fatalf("failed to open dead letter store: %v", err)
		}
		defer store.Close()
		dl = store
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := actor.ActorConfig{
		Host:     *host,
		Port:     *port,
		Security: sec,
	}
	facade, err := actor.StartSystem(ctx, &rootBehavior{}, cfg, dl)
	if err != nil {
		log.Fatalf("failed to start actor system: %v", err)
	}

	srv := actor.NewServer(*host, *port, sec, 0)
	facade.System().AttachServer(srv)
	if err := facade.System().StartNetworking(ctx); err != nil {
		log.Fatalf("failed to start networking: %v", err)
	}

	log.Printf("relayd listening on %s:%d, root address id=%s",
		*host, *port, facade.System().Address().ID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("received %v, shutting down (send again to force exit)...", sig)

	go func() {
		sig := <-sigCh
		log.Printf("received %v again, forcing immediate exit", sig)
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownGrace+10*time.Second)
	defer shutdownCancel()

	if err := facade.Shutdown(shutdownCtx, *shutdownGrace); err != nil {
		log.Printf("shutdown incomplete: %v", err)
	}
}

// rootBehavior is the system root's own user-level behavior. It never
// receives application traffic directly in the reference daemon: every
// client connects through CreateActor to spawn its own children, so the
// root only needs to satisfy the Receiver interface.
type rootBehavior struct {
	actor.BaseBehavior
}

func expandHome(path string) string {
	if path == "" {
		return ""
	}
	if path[0] != '~' {
		return os.ExpandEnv(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("failed to resolve home directory: %v", err)
	}
	return filepath.Join(home, path[1:])
}
