package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/audio.capture/internal/capture"
	"github.com/banshee-data/audio.capture/internal/config"
	"github.com/banshee-data/audio.capture/internal/db"
	"github.com/banshee-data/audio.capture/internal/dsp"
	"github.com/banshee-data/audio.capture/internal/export"
	"github.com/banshee-data/audio.capture/internal/fsutil"
	"github.com/banshee-data/audio.capture/internal/monitoring"
	"github.com/banshee-data/audio.capture/internal/prompt"
	"github.com/banshee-data/audio.capture/internal/serialport"
	"github.com/banshee-data/audio.capture/internal/timeutil"
)

// ErrNoPort is returned when no serial port was configured.
var ErrNoPort = errors.New("no serial port: set -port or \"port\" in the config file")

// stampLayout is appended to the basename of every output file.
const stampLayout = "20060102_150405"

// app wires one capture from port to catalogue.
type app struct {
	cfg       *config.CaptureConfig
	factory   serialport.SerialPortFactory
	detect    func() (string, error) // finds the board when no port is set; may be nil
	console   *prompt.Console
	out       io.Writer
	fs        fsutil.FileSystem
	catalogue *db.DB // nil when the catalogue is disabled
	clock     timeutil.Clock
}

// unusable reports whether err means the recording held no signal worth
// filtering, so the user may record again.
func unusable(err error) bool {
	return errors.Is(err, dsp.ErrDegenerateSignal) ||
		errors.Is(err, dsp.ErrNoSamples) ||
		errors.Is(err, dsp.ErrMalformedCapture)
}

// portPath returns the configured port, or the detected board when none is
// configured.
func (a *app) portPath() (string, error) {
	if p := a.cfg.GetPort(); p != "" {
		return p, nil
	}
	if a.detect == nil {
		return "", ErrNoPort
	}
	p, err := a.detect()
	if err != nil {
		return "", fmt.Errorf("%w (auto-detect: %w)", ErrNoPort, err)
	}
	fmt.Fprintf(a.out, "Using capture board on %s\n", p)
	return p, nil
}

// run records a capture, processes it, exports it and catalogues it. A
// recording with no usable signal is dropped and the user is asked whether
// to record again.
func (a *app) run(ctx context.Context) (*db.CaptureRecord, error) {
	path, err := a.portPath()
	if err != nil {
		return nil, err
	}
	sessCfg, err := a.cfg.SessionConfig()
	if err != nil {
		return nil, err
	}
	formats, err := a.cfg.ExportFormats()
	if err != nil {
		return nil, err
	}
	opts, err := a.cfg.PortOptions()
	if err != nil {
		return nil, err
	}

	port, err := a.factory.Open(path, opts)
	if err != nil {
		return nil, err
	}
	src := serialport.NewSource(port)
	defer src.Close()

	for {
		res, err := a.record(ctx, sessCfg, src)
		if err != nil {
			return nil, err
		}

		started := time.Now()
		sig, err := dsp.Process(res.Raw, res.SampleRate, a.cfg.Band())
		if err == nil {
			monitoring.Elapsed("filter", started)
			return a.save(ctx, res, sig, formats)
		}
		if !unusable(err) {
			return nil, err
		}

		monitoring.Logf("capture %s discarded: %v", res.ID, err)
		fmt.Fprintf(a.out, "No usable signal in the recording (%v).\n", err)
		again, perr := a.console.Confirm(ctx, "Record again? (Y/N): ")
		if perr != nil {
			return nil, perr
		}
		if !again {
			return nil, fmt.Errorf("no usable signal in capture %s: %w", res.ID, err)
		}
		if err := src.Flush(); err != nil {
			return nil, err
		}
	}
}

// record runs one fresh session on src.
func (a *app) record(ctx context.Context, cfg capture.Config, src *serialport.Source) (*capture.Result, error) {
	sess, err := capture.NewSession(cfg, src, a.console, capture.WithClock(a.clock))
	if err != nil {
		return nil, err
	}
	a.announce(cfg)

	res, err := sess.Run(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "Captured %d frames (%d bytes).\n", res.Frames, len(res.Raw))
	if res.Implicit {
		fmt.Fprintln(a.out, "The serial stream ended early; the partial recording was kept.")
	}
	return res, nil
}

// save exports sig and records it in the catalogue.
func (a *app) save(ctx context.Context, res *capture.Result, sig *dsp.Signal, formats []export.Format) (*db.CaptureRecord, error) {
	exporter := export.NewExporter(a.cfg.GetOutputDir(),
		export.WithFileSystem(a.fs),
		export.WithOverwrite(a.cfg.GetOverwrite()))
	basename := a.cfg.GetBasename() + "_" + res.StartedAt.Format(stampLayout)
	paths, err := exporter.Export(sig, basename, formats)
	for _, p := range paths {
		fmt.Fprintf(a.out, "Saved %s\n", p)
	}
	if err != nil {
		return nil, err
	}

	rec := captureRecord(res, sig, formats, paths)
	if a.catalogue != nil {
		if err := a.catalogue.RecordCapture(ctx, rec); err != nil {
			return &rec, fmt.Errorf("failed to catalogue capture %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func (a *app) announce(cfg capture.Config) {
	switch cfg.Mode {
	case capture.ModeManual:
		fmt.Fprintf(a.out, "Recording %s (%d frames)...\n", cfg.Duration, cfg.TargetFrames())
	case capture.ModeDistance:
		fmt.Fprintf(a.out, "Waiting for an object in range (on after %d frames, off after %d)...\n",
			cfg.OnThreshold, cfg.OffThreshold)
	}
}

// captureRecord builds the catalogue row. paths[i] was written in formats[i].
func captureRecord(res *capture.Result, sig *dsp.Signal, formats []export.Format, paths []string) db.CaptureRecord {
	rec := db.CaptureRecord{
		ID:            res.ID,
		Mode:          res.Mode.String(),
		SampleRate:    res.SampleRate,
		Frames:        res.Frames,
		Bytes:         len(res.Raw),
		Discards:      res.Discards,
		Implicit:      res.Implicit,
		SyncFrames:    res.Sync.Frames,
		SyncInvalid:   res.Sync.Invalid,
		SyncDiscarded: res.Sync.Discarded,
		SyncResyncs:   res.Sync.Resyncs,
		LowCutoffHz:   sig.Band.Low,
		HighCutoffHz:  sig.Band.High,
		FilterOrder:   sig.Band.Order,
		StartedAt:     res.StartedAt,
		EndedAt:       res.EndedAt,
	}
	for i, p := range paths {
		rec.Files = append(rec.Files, db.CaptureFile{Format: formats[i].String(), Path: p})
	}
	return rec
}

// configureInteractively asks for mode, length and export format, the way
// the bench tool's start-up menu does.
func (a *app) configureInteractively(ctx context.Context) error {
	modes := []string{"Manual recording (fixed length)", "Distance-triggered recording"}
	i, err := a.console.Select(ctx, "Select recording mode:", modes)
	if err != nil {
		return err
	}
	if i == 0 {
		mode := capture.ModeManual.String()
		a.cfg.Mode = &mode
		d, err := a.console.AskDuration(ctx, "Recording length in seconds: ")
		if err != nil {
			return err
		}
		s := d.String()
		a.cfg.Duration = &s
	} else {
		mode := capture.ModeDistance.String()
		a.cfg.Mode = &mode
	}

	options := make([]string, 0, len(export.AllFormats)+1)
	for _, f := range export.AllFormats {
		options = append(options, f.Describe())
	}
	options = append(options, "All formats")
	j, err := a.console.Select(ctx, "Select export format:", options)
	if err != nil {
		return err
	}
	if j == len(export.AllFormats) {
		a.cfg.Formats = []string{"all"}
	} else {
		a.cfg.Formats = []string{export.AllFormats[j].String()}
	}
	return a.cfg.Validate()
}

func printCaptures(w io.Writer, recs []db.CaptureRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No captures catalogued.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tLENGTH\tFRAMES\tDISCARDS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Mode,
			r.Duration().Round(time.Millisecond), r.Frames, r.Discards)
	}
	tw.Flush()
}
