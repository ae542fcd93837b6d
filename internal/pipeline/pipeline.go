package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/maax3v3/beadboard/internal/cli"
	"github.com/maax3v3/beadboard/internal/config"
	"github.com/maax3v3/beadboard/internal/imaging"
	"github.com/maax3v3/beadboard/internal/palette"
	"github.com/maax3v3/beadboard/internal/project"
	"github.com/maax3v3/beadboard/internal/renderer"
	"github.com/maax3v3/beadboard/internal/session"
)

// Run executes a batch conversion: image in, bead pattern (and optionally
// a project file and a legend sheet) out.
func Run(ctx context.Context, args cli.Config, cfg *config.Config, font renderer.FontRenderer) error {
	// Step 1: Load palette
	p, err := loadPalette(args, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Palette: %d colors\n", len(p))

	// Step 2: Load input image
	fmt.Printf("Loading image: %s\n", args.InPath)
	img, err := imaging.Load(args.InPath)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}
	fmt.Printf("Image loaded: %dx%d\n", img.Bounds().Dx(), img.Bounds().Dy())

	// Step 3: Quantize onto the bead grid
	opts := cfg.SessionOptions(p, nil)
	if args.Width != 0 {
		opts.Width = args.Width
	}
	opts.LockAspectRatio = args.Height == 0
	if args.Height != 0 {
		opts.Height = args.Height
	}
	sess := session.New(opts)

	fmt.Println("Sampling image...")
	if err := sess.LoadImage(ctx, img); err != nil {
		return fmt.Errorf("sampling image: %w", err)
	}
	settings := sess.State().Settings
	fmt.Printf("Grid: %dx%d beads\n", settings.Width, settings.Height)

	// Step 4: Merge rare colors if requested
	if args.MergeThreshold > 0 {
		fmt.Println("Merging rare colors...")
		plan, err := sess.MergeRare(args.MergeThreshold)
		if err != nil {
			fmt.Printf("Nothing to merge: %v\n", err)
		} else {
			fmt.Printf("Merged %d rare colors into %d common colors\n", len(plan.Rare), len(plan.Common))
		}
	}

	stats := sess.Stats()
	fmt.Printf("Distinct colors: %d\n", len(stats.Entries))

	// Step 5: Render and save the pattern
	rcfg := cfg.Renderer()
	fmt.Printf("Saving pattern: %s\n", args.OutPath)
	if err := imaging.Save(args.OutPath, renderer.RenderGrid(sess.State().Grid, rcfg)); err != nil {
		return fmt.Errorf("saving pattern: %w", err)
	}

	// Step 6: Optional project file
	if args.ProjectPath != "" {
		fmt.Printf("Saving project: %s\n", args.ProjectPath)
		if err := saveProject(sess, args.ProjectPath); err != nil {
			return err
		}
	}

	// Step 7: Optional legend
	if args.LegendPath != "" {
		fmt.Printf("Saving legend: %s\n", args.LegendPath)
		legend := renderer.RenderLegend(stats, font, rcfg)
		if err := imaging.SavePNG(args.LegendPath, legend); err != nil {
			return fmt.Errorf("saving legend: %w", err)
		}
	}

	fmt.Println("Done!")
	return nil
}

func loadPalette(args cli.Config, cfg *config.Config) (palette.Palette, error) {
	if args.PalettePath != "" {
		p, err := palette.LoadFile(imaging.ExpandPath(args.PalettePath))
		if err != nil {
			return nil, fmt.Errorf("loading palette: %w", err)
		}
		return p, nil
	}
	p, err := cfg.LoadPalette()
	if err != nil {
		return nil, fmt.Errorf("loading palette: %w", err)
	}
	return p, nil
}

func saveProject(sess *session.Session, path string) error {
	f := project.New(sess.State(), sess.Palette(), time.Now())
	if err := project.Save(path, f); err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	return nil
}
