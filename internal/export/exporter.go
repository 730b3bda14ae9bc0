package export

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/audio.capture/internal/dsp"
	"github.com/banshee-data/audio.capture/internal/fsutil"
	"github.com/banshee-data/audio.capture/internal/monitoring"
	"github.com/banshee-data/audio.capture/internal/security"
)

// Exporter writes signals into one output directory.
type Exporter struct {
	fs        fsutil.FileSystem
	dir       string
	overwrite bool
	// validate is off for in-memory filesystems, whose paths do not exist
	// on disk.
	validate bool
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithFileSystem swaps the filesystem, mainly for tests. Path validation
// against the real filesystem is disabled.
func WithFileSystem(fsys fsutil.FileSystem) ExporterOption {
	return func(e *Exporter) {
		e.fs = fsys
		_, isOS := fsys.(fsutil.OSFileSystem)
		e.validate = isOS
	}
}

// WithOverwrite replaces existing files instead of picking a fresh name.
func WithOverwrite(overwrite bool) ExporterOption {
	return func(e *Exporter) { e.overwrite = overwrite }
}

// NewExporter writes into dir, creating it on first use.
func NewExporter(dir string, opts ...ExporterOption) *Exporter {
	e := &Exporter{fs: fsutil.OSFileSystem{}, dir: dir, validate: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.dir }

// Path returns where a signal named basename would be written in format f.
func (e *Exporter) Path(basename string, f Format) (string, error) {
	path := filepath.Join(e.dir, security.SanitizeFilename(basename)+f.Ext())
	if e.validate {
		if err := security.ValidatePathWithinDirectory(path, e.dir); err != nil {
			return "", err
		}
	}
	if !e.overwrite {
		path = fsutil.UniquePath(e.fs, path)
	}
	return path, nil
}

// Export writes sig in each format and returns the paths written. It stops
// at the first failure; files already written are kept and returned.
func (e *Exporter) Export(sig *dsp.Signal, basename string, formats []Format) ([]string, error) {
	if sig == nil {
		return nil, errors.New("nothing to export")
	}
	if err := e.fs.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	for _, f := range formats {
		path, err := e.write(sig, basename, f)
		if err != nil {
			return written, fmt.Errorf("export %s: %w", f, err)
		}
		monitoring.Logf("export: wrote %s (%d samples)", path, sig.Len())
		written = append(written, path)
	}
	return written, nil
}

func (e *Exporter) write(sig *dsp.Signal, basename string, f Format) (path string, err error) {
	encode, err := f.Writer()
	if err != nil {
		return "", err
	}
	target, err := e.Path(basename, f)
	if err != nil {
		return "", err
	}
	w, err := e.fs.Create(target)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
			path = ""
		}
		if err != nil {
			_ = e.fs.Remove(target)
		}
	}()

	if err := encode(w, sig); err != nil {
		return "", err
	}
	return target, nil
}
