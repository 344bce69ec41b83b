// Command eclipserd is the CLI entrypoint for the grey-box concolic
// fuzzing engine (spec §4.9/C12). It parses flags into a
// config.FuzzOption, wires up the optional PostgreSQL persistence and
// gin/websocket dashboard, and hands control to internal/engine's fuzz
// loop. Option *semantics* (validation beyond basic type conversion,
// defaulting) stay out of scope per spec §1 — this command only
// constructs the FuzzOption the core expects.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/greybox/eclipser/internal/api"
	"github.com/greybox/eclipser/internal/config"
	"github.com/greybox/eclipser/internal/db"
	"github.com/greybox/eclipser/internal/engine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("[eclipserd] %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opt := config.Defaults()

	var (
		timelimitSec  int
		execTimeoutMs int
		archFlag      string
		sourceFlag    string
		argsFlag      []string
	)

	cmd := &cobra.Command{
		Use:   "eclipserd --target <binary> [flags]",
		Short: "Grey-box concolic fuzzing engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opt.Target == "" {
				return fmt.Errorf("--target is required")
			}

			opt.TimeLimit = time.Duration(timelimitSec) * time.Second
			opt.ExecTimeout = time.Duration(execTimeoutMs) * time.Millisecond
			opt.Args = argsFlag

			switch strings.ToLower(archFlag) {
			case "x86":
				opt.Arch = config.ArchX86
			default:
				opt.Arch = config.ArchX8664
			}

			switch strings.ToLower(sourceFlag) {
			case "file":
				opt.Source = config.SourceFile
			default:
				opt.Source = config.SourceStdin
			}

			return run(opt)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opt.Target, "target", "", "path to the instrumented target binary (required)")
	flags.StringArrayVar(&argsFlag, "arg", nil, "extra argument passed to the target; repeatable, an @@ entry is replaced with the input file path")
	flags.StringVar(&opt.OutDir, "out-dir", opt.OutDir, "directory for classified test-cases, crashes, and hangs")
	flags.StringVar(&opt.SyncDir, "sync-dir", "", "AFL-style sync root shared with a peer fuzzer")
	flags.StringVar(&opt.InputDir, "input-dir", "", "directory of seed files to load the initial queue from")
	flags.IntVar(&timelimitSec, "timelimit", 0, "wall-clock budget in seconds (0 = unbounded)")
	flags.IntVar(&execTimeoutMs, "exec-timeout", int(opt.ExecTimeout/time.Millisecond), "per-execution timeout in milliseconds")
	flags.StringVar(&archFlag, "arch", string(opt.Arch), "target architecture: x86 or x64")
	flags.IntVar(&opt.Verbosity, "verbosity", 0, "log verbosity level")
	flags.BoolVar(&opt.ForkServer, "fork-server", opt.ForkServer, "use the tracer's persistent fork-server protocol")
	flags.StringVar(&sourceFlag, "source", "stdin", "fuzzed input source: stdin or file")
	flags.IntVar(&opt.NSolve, "n-solve", opt.NSolve, "max candidate branches solved per grey-box round")
	flags.IntVar(&opt.NSpawn, "n-spawn", opt.NSpawn, "try-values sampled per round")

	return cmd
}

func run(opt config.FuzzOption) error {
	log.Println("[eclipserd] starting grey-box concolic fuzzing engine...")

	runID := uuid.New().String()

	var dbConn *db.PostgresStore
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		conn, err := db.Connect(dsn)
		if err != nil {
			log.Printf("[eclipserd] Warning: failed to connect to PostgreSQL, continuing without persisting run stats: %v", err)
		} else {
			defer conn.Close()
			if err := conn.InitSchema(); err != nil {
				log.Printf("[eclipserd] Warning: DB schema init failed: %v", err)
			}
			dbConn = conn
		}
	} else {
		log.Println("[eclipserd] DATABASE_URL not set, continuing without persisting run stats")
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	e := engine.New(opt, dbConn, wsHub, runID)

	port := getEnvOrDefault("PORT", "7878")
	r := api.SetupRouter(e.Publisher, e.Depths, dbConn, e.Dict, wsHub, runID)
	go func() {
		log.Printf("[eclipserd] dashboard listening on :%s (run %s)\n", port, runID)
		if err := r.Run(":" + port); err != nil {
			log.Printf("[eclipserd] dashboard server stopped: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[eclipserd] received shutdown signal, stopping fuzz loop...")
		cancel()
	}()

	if err := e.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	log.Printf("[eclipserd] run %s finished\n", runID)
	return nil
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings, matching the teacher's cmd/engine/main.go.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
