// Command capture records audio from the serial capture board, filters it
// and writes it out as WAV, PNG, CSV or HTML.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/audio.capture/internal/capture"
	"github.com/banshee-data/audio.capture/internal/db"
	"github.com/banshee-data/audio.capture/internal/framesync"
	"github.com/banshee-data/audio.capture/internal/fsutil"
	"github.com/banshee-data/audio.capture/internal/monitoring"
	"github.com/banshee-data/audio.capture/internal/prompt"
	"github.com/banshee-data/audio.capture/internal/serialport"
	"github.com/banshee-data/audio.capture/internal/timeutil"
	"github.com/banshee-data/audio.capture/internal/version"
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdin, os.Stdout))
}

// realMain returns the process exit code so deferred cleanup runs before
// the process exits.
func realMain(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	flags := defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if flags.version {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	var trace io.Writer
	if flags.trace {
		trace = os.Stderr
	}
	capture.SetLogWriters(os.Stderr, os.Stderr, trace)
	framesync.SetLogWriters(os.Stderr, os.Stderr, trace)
	monitoring.UseWriter(os.Stderr, "")

	if flags.listPorts {
		ports, err := serialport.ListPorts()
		if err != nil {
			log.Print(err)
			return 1
		}
		if len(ports) == 0 {
			fmt.Fprintln(stdout, "No serial ports found.")
		}
		for _, p := range ports {
			fmt.Fprintln(stdout, p)
		}
		return 0
	}

	cfg, err := flags.loadConfig()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	if err := flags.apply(fs, cfg); err != nil {
		log.Printf("invalid configuration: %v", err)
		return 1
	}

	if fs.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(stdout, fs.Args()[1:], cfg.GetDBPath()); err != nil {
			log.Print(err)
			return 1
		}
		return 0
	}

	var catalogue *db.DB
	if path := cfg.GetDBPath(); path != "" {
		catalogue, err = db.NewDB(path)
		if err != nil {
			log.Printf("failed to open catalogue: %v", err)
			return 1
		}
		defer catalogue.Close()
	}

	if flags.list > 0 {
		if catalogue == nil {
			log.Print("-list needs a catalogue; set -db or db_path")
			return 1
		}
		recs, err := catalogue.ListCaptures(context.Background(), flags.list)
		if err != nil {
			log.Printf("failed to list captures: %v", err)
			return 1
		}
		printCaptures(stdout, recs)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:       cfg,
		factory:   serialport.NewRealSerialPortFactory(),
		detect:    serialport.FindBoard,
		console:   prompt.NewConsole(stdin, stdout),
		out:       stdout,
		fs:        fsutil.OSFileSystem{},
		catalogue: catalogue,
		clock:     timeutil.RealClock{},
	}

	if flags.menu {
		if err := a.configureInteractively(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, prompt.ErrInputClosed) {
				return 0
			}
			log.Printf("menu: %v", err)
			return 1
		}
	}

	log.Printf("capture %s starting", version.String())
	if _, err := a.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Print("capture cancelled")
			return 130
		}
		log.Printf("capture failed: %v", err)
		return 1
	}
	return 0
}
