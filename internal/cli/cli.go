package cli

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/maax3v3/beadboard/internal/board"
)

// Config holds the parsed CLI arguments.
type Config struct {
	InPath         string
	OutPath        string
	ProjectPath    string
	LegendPath     string
	Width          int // 0 uses the configured default
	Height         int // 0 derives from the image aspect ratio
	PalettePath    string
	MergeThreshold float64 // 0 disables merging
	ConfigPath     string
	ServeAddr      string
}

// Serving reports whether the HTTP API was requested instead of a batch run.
func (c Config) Serving() bool { return c.ServeAddr != "" }

// Parse parses args (without the program name) and returns a validated
// Config. Usage and flag errors are written to stderr.
func Parse(args []string, stderr io.Writer) (Config, error) {
	fs := flag.NewFlagSet("beadboard", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var cfg Config
	fs.StringVar(&cfg.InPath, "in", "", "Path to input image (required for batch runs; png, jpg, gif, webp, bmp, tiff, qoi)")
	fs.StringVar(&cfg.OutPath, "out", "", "Path to the bead pattern image (required for batch runs; .png or .qoi)")
	fs.StringVar(&cfg.ProjectPath, "project", "", "Optional project file to write (.json or .json.zst)")
	fs.StringVar(&cfg.LegendPath, "legend", "", "Optional bead legend image to write (.png)")
	fs.IntVar(&cfg.Width, "width", 0, fmt.Sprintf("Grid width in beads (%d-%d, 0 = config default)", board.MinSize, board.MaxSize))
	fs.IntVar(&cfg.Height, "height", 0, fmt.Sprintf("Grid height in beads (%d-%d, 0 = keep image aspect ratio)", board.MinSize, board.MaxSize))
	fs.StringVar(&cfg.PalettePath, "palette", "", "YAML or JSON palette file (default: stock palette)")
	fs.Float64Var(&cfg.MergeThreshold, "merge-threshold", 0, "Merge colors used by less than this share of beads (0 = no merge, e.g. 0.03)")
	fs.StringVar(&cfg.ConfigPath, "config", "", "YAML config file")
	fs.StringVar(&cfg.ServeAddr, "serve", "", "Serve the HTTP API on this address instead of running a batch conversion (e.g. :8080)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: beadboard [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n  beadboard --in=photo.jpg --out=pattern.png --width=29 --legend=legend.png\n  beadboard --serve=:8080\n")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Width != 0 && (cfg.Width < board.MinSize || cfg.Width > board.MaxSize) {
		return Config{}, fmt.Errorf("--width must be between %d and %d, got %d", board.MinSize, board.MaxSize, cfg.Width)
	}
	if cfg.Height != 0 && (cfg.Height < board.MinSize || cfg.Height > board.MaxSize) {
		return Config{}, fmt.Errorf("--height must be between %d and %d, got %d", board.MinSize, board.MaxSize, cfg.Height)
	}
	if cfg.MergeThreshold < 0 || cfg.MergeThreshold >= 1 {
		return Config{}, fmt.Errorf("--merge-threshold must be in [0, 1), got %g", cfg.MergeThreshold)
	}
	if cfg.Serving() {
		return cfg, nil
	}

	if cfg.InPath == "" {
		return Config{}, fmt.Errorf("--in is required")
	}
	if cfg.OutPath == "" {
		return Config{}, fmt.Errorf("--out is required")
	}
	if ext := strings.ToLower(filepath.Ext(cfg.OutPath)); ext != ".png" && ext != ".qoi" {
		return Config{}, fmt.Errorf("--out must be a .png or .qoi file, got %q", ext)
	}
	if p := strings.ToLower(cfg.ProjectPath); p != "" && !strings.HasSuffix(p, ".json") && !strings.HasSuffix(p, ".json.zst") {
		return Config{}, fmt.Errorf("--project must be a .json or .json.zst file, got %q", cfg.ProjectPath)
	}
	if cfg.LegendPath != "" && strings.ToLower(filepath.Ext(cfg.LegendPath)) != ".png" {
		return Config{}, fmt.Errorf("--legend must be a .png file, got %q", cfg.LegendPath)
	}
	return cfg, nil
}
