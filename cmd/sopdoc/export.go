package main

import (
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/config"
)

// exportFlags holds flags for the export command.
type exportFlags struct {
	common        commonFlags
	output        string
	workers       int
	timeout       string
	html          bool
	style         string
	assetPath     string
	dateFormat    string
	scale         float64
	quality       int
	background    string
	noCrossOrigin bool
}

// runExport exports one or more projects through the exporter pool.
func runExport(args []string, env *Environment) error {
	fs := newFlagSet("export", env.Stderr, printExportUsage)
	f := &exportFlags{}
	fs.StringVarP(&f.output, "output", "o", "", "output directory or .pdf file")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel exporters (0 = auto)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-export timeout (e.g., 30s, 2m)")
	fs.BoolVar(&f.html, "html", false, "also write the printable HTML")
	fs.StringVar(&f.style, "style", "", "stylesheet name")
	fs.StringVar(&f.assetPath, "asset-path", "", "custom asset directory")
	fs.StringVar(&f.dateFormat, "date-format", "", "footer date format")
	fs.Float64Var(&f.scale, "scale", 0, "device scale factor")
	fs.IntVar(&f.quality, "quality", 0, "JPEG quality 1-100")
	fs.StringVar(&f.background, "background", "", "page background color")
	fs.BoolVar(&f.noCrossOrigin, "no-cross-origin", false, "do not load remote images")
	addCommonFlags(fs, &f.common)

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: export needs a project file or directory", ErrNoInput)
	}
	if err := validateWorkers(f.workers); err != nil {
		return err
	}

	st, err := loadSettings(f.common, env)
	if err != nil {
		return err
	}
	if err := mergeExportFlags(fs, f, st.cfg); err != nil {
		return err
	}
	if err := st.cfg.Validate(); err != nil {
		return err
	}

	outputDir := f.output
	if outputDir == "" {
		outputDir = st.cfg.Export.OutputDir
	}
	projects, err := discoverProjects(fs.Args(), outputDir)
	if err != nil {
		return fmt.Errorf("discovering projects: %w", err)
	}
	if len(projects) == 0 {
		return fmt.Errorf("%w: no project files found in %s", ErrNoInput, strings.Join(fs.Args(), ", "))
	}

	size := min(sopdoc.ResolvePoolSize(st.cfg.Export.Workers), len(projects))
	st.logger.Debug("starting export", "projects", len(projects), "workers", size)

	pool := env.NewPool(size, st.exportOptions()...)
	defer func() { _ = pool.Close() }()

	ctx, stop := background()
	defer stop()

	// The first exporter is created eagerly so that a bad style or asset
	// directory fails once instead of once per project.
	exp, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	pool.Release(exp)

	results := exportBatch(ctx, pool, projects, f.html)
	return printResults(results, f.common, env)
}

// mergeExportFlags applies the flags given on the command line to cfg (CLI wins).
func mergeExportFlags(fs *flag.FlagSet, f *exportFlags, cfg *config.Config) error {
	if fs.Changed("workers") {
		cfg.Export.Workers = f.workers
	}
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return fmt.Errorf("%w: --timeout: %v", ErrUsage, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: --timeout must be positive, got %s", ErrUsage, f.timeout)
		}
		cfg.Export.Timeout = d
	}
	if f.style != "" {
		cfg.Assets.Style = f.style
	}
	if f.assetPath != "" {
		cfg.Assets.BasePath = f.assetPath
	}
	if f.dateFormat != "" {
		cfg.Export.DateFormat = f.dateFormat
	}
	if fs.Changed("scale") {
		cfg.Export.Scale = f.scale
	}
	if fs.Changed("quality") {
		cfg.Export.Quality = f.quality
	}
	if f.background != "" {
		cfg.Export.Background = f.background
	}
	if f.noCrossOrigin {
		cfg.Export.AllowCrossOrigin = false
	}
	return nil
}
