package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/reversi/internal/board"
	"github.com/hailam/reversi/internal/engine"
	"github.com/hailam/reversi/internal/protocol"
	"github.com/hailam/reversi/internal/storage"
)

var (
	hashBits   = flag.Int("hashbits", engine.DefaultConfig().HashBits, "transposition table size as a power of two")
	ways       = flag.Int("ways", engine.DefaultConfig().Ways, "transposition table associativity")
	lockBits   = flag.Int("lockbits", engine.DefaultConfig().LockBits, "number of table locks as a power of two")
	kernel     = flag.String("kernel", board.KernelAuto, "flip kernel: auto, carry or kindergarten")
	debug      = flag.Bool("debug", false, "enable debug logging and move validation")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	dataDir    = flag.String("datadir", "", "snapshot database directory (default: platform data dir)")
	noDB       = flag.Bool("nodb", false, "run without the snapshot database")
)

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		board.DebugChecks = true
	}

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", profilePath).Msg("cpu-profile-enabled")
	}

	var store *storage.Storage
	settings := storage.DefaultSettings()
	if !*noDB {
		var err error
		store, err = storage.Open(*dataDir)
		if err != nil {
			log.Warn().Err(err).Msg("storage-unavailable")
		} else {
			defer store.Close()
			if settings, err = store.LoadSettings(); err != nil {
				log.Warn().Err(err).Msg("settings-load-failed")
			}
		}
	}
	applyFlags(settings)

	if err := board.UseKernel(settings.Kernel); err != nil {
		log.Warn().Err(err).Msg("kernel-fallback")
		board.UseKernel(board.KernelAuto)
	}
	board.InitStability()

	table := engine.New(settings.TableConfig())
	flip, mask := board.ActiveKernels()
	log.Info().
		Int("entries", table.Size()).
		Int("ways", table.Ways()).
		Int("locks", table.Locks()).
		Str("flip", flip).
		Str("mask", mask).
		Msg("engine-ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	console := protocol.New(table, store, settings)
	if err := console.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("console-failed")
	}
}

// applyFlags overrides stored settings with the flags given on the command
// line.
func applyFlags(s *storage.Settings) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "hashbits":
			s.HashBits = *hashBits
		case "ways":
			s.Ways = *ways
		case "lockbits":
			s.LockBits = *lockBits
		case "kernel":
			s.Kernel = *kernel
		}
	})
}
