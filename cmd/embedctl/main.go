package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/urfave/cli/v2"

	"media-embedder/internal/database"
	"media-embedder/internal/embedder"
	"media-embedder/internal/filesystem"
	"media-embedder/internal/logging"
	"media-embedder/internal/mediatypes"
	"media-embedder/internal/page"
	"media-embedder/internal/startup"
	"media-embedder/internal/workers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logging.Error("%v", err)
		stop()
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		os.Exit(1)
	}
}

// session holds what every command needs, built in Before.
type session struct {
	config   *startup.Config
	store    database.Store
	db       *database.Database
	pipeline embedder.Options
	allow    *mediatypes.AllowList
	stopVips func()
}

func (s *session) close() {
	if s.stopVips != nil {
		s.stopVips()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logging.Warn("closing cache database: %v", err)
		}
	}
}

func newApp() *cli.App {
	s := &session{}

	return &cli.App{
		Name:    "embedctl",
		Usage:   "embed inline video players into HTML pages",
		Version: startup.Version,
		// main decides the exit status
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "use an in-memory cache instead of the cache database",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
		},
		Before: func(c *cli.Context) error {
			return s.open(c)
		},
		After: func(*cli.Context) error {
			s.close()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "embed",
				Usage:     "rewrite HTML files, replacing video links with players",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "directory for rewritten files",
						Value:   "embedded",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "files processed concurrently (0 sizes from CPUs)",
					},
				},
				Action: s.embedAction,
			},
			{
				Name:      "probe",
				Usage:     "run the pipeline for a single URL",
				ArgsUsage: "URL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "thumbnail",
						Usage: "write the thumbnail to `FILE`",
					},
				},
				Action: s.probeAction,
			},
			{
				Name:      "volume",
				Usage:     "print the shared playback volume, or set it",
				ArgsUsage: "[VALUE]",
				Action:    s.volumeAction,
			},
		},
	}
}

func (s *session) open(c *cli.Context) error {
	if level, ok := logging.ParseLevel(c.String("log-level")); ok {
		logging.SetLevel(level)
	}

	config, err := startup.ResolveConfig(c.String("config"))
	if err != nil {
		return err
	}
	s.config = config

	if c.Bool("no-cache") {
		s.store = database.NewMemoryStore(config.CacheQuotaBytes)
	} else {
		if err := os.MkdirAll(config.DatabaseDir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := startup.OpenCache(c.Context, config)
		if err != nil {
			return err
		}
		s.db = db
		s.store = db
	}

	s.stopVips = startup.InitThumbnails(config)
	s.pipeline, s.allow = startup.Pipeline(config, s.store)
	return nil
}

func (s *session) embedAction(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("embed: at least one FILE is required", 2)
	}

	outDir := c.String("out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	n := c.Int("workers")
	if n <= 0 {
		n = workers.ForIO(8)
	}

	var embedded, failed atomic.Int64
	errs := workers.Each(c.Context, n, files, func(ctx context.Context, file string) error {
		sum, err := s.embedFile(ctx, file, filepath.Join(outDir, filepath.Base(file)))
		embedded.Add(int64(sum.Embedded))
		failed.Add(int64(sum.Failed))
		return err
	})

	var failures []error
	for i, err := range errs {
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", files[i], err))
		}
	}
	fmt.Fprintf(c.App.Writer, "%d files, %d players embedded, %d links left unchanged\n",
		len(files)-len(failures), embedded.Load(), failed.Load())
	return errors.Join(failures...)
}

func (s *session) embedFile(ctx context.Context, in, out string) (embedder.Summary, error) {
	f, err := filesystem.OpenWithRetry(in, filesystem.DefaultRetryConfig())
	if err != nil {
		return embedder.Summary{}, err
	}
	doc, err := page.Parse(f)
	_ = f.Close()
	if err != nil {
		return embedder.Summary{}, err
	}

	sum, err := embedder.ProcessDocument(ctx, s.pipeline, doc, s.allow)
	if err != nil {
		return sum, err
	}

	html, err := doc.Render()
	if err != nil {
		return sum, err
	}
	if err := filesystem.WriteFileAtomic(out, []byte(html), 0o644, filesystem.DefaultRetryConfig()); err != nil {
		return sum, err
	}
	logging.Info("%s -> %s: %d/%d links embedded", in, out, sum.Embedded, sum.Candidates)
	return sum, nil
}

func (s *session) probeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("probe: exactly one URL is required", 2)
	}
	candidate, ok := s.allow.Match(c.Args().First())
	if !ok {
		return cli.Exit(fmt.Sprintf("probe: %s is not a video on an allowed host (%v)", c.Args().First(), s.allow.Patterns()), 2)
	}

	e, err := embedder.New(s.pipeline)
	if err != nil {
		return err
	}
	link := embedder.NewCaptureLink(candidate.URL)
	res, err := e.Embed(c.Context, link)

	w := c.App.Writer
	fmt.Fprintf(w, "url:       %s\n", candidate.URL)
	fmt.Fprintf(w, "type:      %s\n", candidate.MimeType)
	if res != nil {
		fmt.Fprintf(w, "state:     %s\n", res.State)
		fmt.Fprintf(w, "attempts:  %d %v\n", res.Attempts, res.Budgets)
		fmt.Fprintf(w, "cache hit: %v\n", res.CacheHit)
	}
	if err != nil {
		return fmt.Errorf("probe failed (%s): %w", embedder.FailureReason(err), err)
	}

	fmt.Fprintf(w, "title:     %q\n", res.Title)
	fmt.Fprintf(w, "volume:    %v\n", res.Volume)
	fmt.Fprintf(w, "thumbnail: %dx%d %s, %d bytes\n",
		res.Thumbnail.Width, res.Thumbnail.Height, res.Thumbnail.MIMEType, len(res.Thumbnail.Data))

	if path := c.String("thumbnail"); path != "" {
		if err := os.WriteFile(path, res.Thumbnail.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write thumbnail: %w", err)
		}
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	return nil
}

func (s *session) volumeAction(c *cli.Context) error {
	ns := s.pipeline.Namespaces

	switch c.NArg() {
	case 0:
		v, err := database.GetVolume(c.Context, s.store, ns)
		if err != nil {
			logging.Warn("volume lookup failed, showing default: %v", err)
		}
		fmt.Fprintln(c.App.Writer, strconv.FormatFloat(v, 'f', -1, 64))
		return nil
	case 1:
		v, err := strconv.ParseFloat(c.Args().First(), 64)
		if err != nil {
			return cli.Exit(fmt.Sprintf("volume: %q is not a number", c.Args().First()), 2)
		}
		if err := database.ValidateVolume(v); err != nil {
			return cli.Exit("volume: "+err.Error(), 2)
		}
		if err := database.SetVolume(c.Context, s.store, ns, v); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, strconv.FormatFloat(v, 'f', -1, 64))
		return nil
	default:
		return cli.Exit("volume: at most one VALUE", 2)
	}
}
