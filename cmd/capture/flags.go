package main

import (
	"flag"
	"strings"
	"time"

	"github.com/banshee-data/audio.capture/internal/config"
)

// cliFlags holds the command-line options. Flags that correspond to a
// config field only override the file when given explicitly.
type cliFlags struct {
	configPath string
	port       string
	baud       int
	mode       string
	duration   time.Duration
	formats    string
	out        string
	name       string
	overwrite  bool
	dbPath     string

	menu      bool
	listPorts bool
	list      int
	trace     bool
	version   bool
}

func defineFlags(fs *flag.FlagSet) *cliFlags {
	f := &cliFlags{}
	fs.StringVar(&f.configPath, "config", "", "JSON configuration file (built-in defaults when empty)")
	fs.StringVar(&f.port, "port", "", "Serial port the capture board is attached to (auto-detected when empty)")
	fs.IntVar(&f.baud, "baud", 0, "Serial baud rate")
	fs.StringVar(&f.mode, "mode", "", "Capture mode: manual or distance")
	fs.DurationVar(&f.duration, "duration", 0, "Recording length in manual mode")
	fs.StringVar(&f.formats, "formats", "", "Comma-separated export formats (wav,png,csv,html or all)")
	fs.StringVar(&f.out, "out", "", "Output directory")
	fs.StringVar(&f.name, "name", "", "Output basename; the capture start time is appended")
	fs.BoolVar(&f.overwrite, "overwrite", false, "Replace existing output files instead of numbering new ones")
	fs.StringVar(&f.dbPath, "db", "", "SQLite catalogue path (catalogue disabled when empty)")
	fs.BoolVar(&f.menu, "menu", false, "Choose mode, length and export format interactively")
	fs.BoolVar(&f.listPorts, "list-ports", false, "List serial ports and exit")
	fs.IntVar(&f.list, "list", 0, "Print the N most recent catalogued captures and exit")
	fs.BoolVar(&f.trace, "trace", false, "Log per-frame telemetry to stderr")
	fs.BoolVar(&f.version, "version", false, "Print version and exit")
	return f
}

// loadConfig reads the configuration file, or starts from an empty config
// whose accessors return the defaults.
func (f *cliFlags) loadConfig() (*config.CaptureConfig, error) {
	if f.configPath == "" {
		return config.EmptyCaptureConfig(), nil
	}
	return config.LoadCaptureConfig(f.configPath)
}

// apply copies explicitly set flags into cfg and revalidates it.
func (f *cliFlags) apply(fs *flag.FlagSet, cfg *config.CaptureConfig) error {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "port":
			cfg.Port = &f.port
		case "baud":
			cfg.BaudRate = &f.baud
		case "mode":
			cfg.Mode = &f.mode
		case "duration":
			d := f.duration.String()
			cfg.Duration = &d
		case "formats":
			cfg.Formats = strings.Split(f.formats, ",")
		case "out":
			cfg.OutputDir = &f.out
		case "name":
			cfg.Basename = &f.name
		case "overwrite":
			cfg.Overwrite = &f.overwrite
		case "db":
			cfg.DBPath = &f.dbPath
		}
	})
	return cfg.Validate()
}
