package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/sensor.replay/internal/api"
	"github.com/banshee-data/sensor.replay/internal/archive"
	"github.com/banshee-data/sensor.replay/internal/format"
	"github.com/banshee-data/sensor.replay/internal/pipeline"
	"github.com/banshee-data/sensor.replay/internal/render"
	"github.com/banshee-data/sensor.replay/internal/replay"
)

// newRegistry wires the built-in pipeline steps. Everything is explicit:
// embedders with custom steps build their own registry instead of
// mutating a global one.
func newRegistry() (*pipeline.Registry, error) {
	reg := pipeline.NewRegistry()
	if err := reg.Register("render", render.StepFactory(render.NewRegistry())); err != nil {
		return nil, err
	}
	if err := reg.Register("archive", archive.StepFactory()); err != nil {
		return nil, err
	}
	return reg, nil
}

// runServe loads a case's sensors and serves the query API over them.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	casePath := fs.String("case", "", "case file declaring the sensors to serve")
	listen := fs.String("listen", ":8080", "listen address")
	archivePath := fs.String("archive", "", "optional archive database for run history")
	fs.Parse(args)

	if *casePath == "" {
		return fmt.Errorf("-case is required")
	}
	cfg, err := pipeline.LoadCase(*casePath)
	if err != nil {
		return err
	}

	manager := replay.NewManager()
	baseDir := filepath.Dir(*casePath)
	for _, spec := range cfg.Sensors {
		var opts []replay.StreamOption
		if spec.TimeOffsetMs != nil {
			opts = append(opts, replay.WithTimeOffset(*spec.TimeOffsetMs))
		}
		if spec.ToleranceMs != nil {
			opts = append(opts, replay.WithTolerance(*spec.ToleranceMs))
		}
		path := spec.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if err := manager.Register(spec.Name, path, opts...); err != nil {
			return err
		}
	}

	var store *archive.Store
	if *archivePath != "" {
		store, err = archive.Open(*archivePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := archiveNewStreams(store, manager); err != nil {
			return err
		}
	}

	srv := api.NewServer(manager, store, nil)
	log.Printf("serving %d streams on %s", len(manager.Names()), *listen)
	return http.ListenAndServe(*listen, api.LoggingMiddleware(srv.ServeMux()))
}

// archiveNewStreams saves the manager's streams that the archive does
// not hold yet, so restarting serve against the same database is not an
// error.
func archiveNewStreams(store *archive.Store, manager *replay.Manager) error {
	infos, err := store.Streams()
	if err != nil {
		return err
	}
	archived := make(map[string]bool, len(infos))
	for _, info := range infos {
		archived[info.Name] = true
	}
	for _, name := range manager.Names() {
		if archived[name] {
			continue
		}
		stream, _ := manager.Stream(name)
		if err := store.SaveStream(name, stream); err != nil {
			return err
		}
		log.Printf("archived stream %q (%d records)", name, stream.Len())
	}
	return nil
}

// runReplay executes one case file end to end.
func runReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	casePath := fs.String("case", "", "case file to run")
	fs.Parse(args)

	if *casePath == "" {
		return fmt.Errorf("-case is required")
	}
	cfg, err := pipeline.LoadCase(*casePath)
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	runner, err := pipeline.NewRunner(cfg, reg, filepath.Dir(*casePath), nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx)
	if summary != nil {
		log.Printf("replayed %d frames, %d records (%.3fms..%.3fms at %g fps)",
			summary.Frames, summary.RecordsPlayed, summary.StartMs, summary.EndMs, summary.FPS)
	}
	return err
}

// runExport writes an archived stream back out as a stream file.
func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	archivePath := fs.String("archive", "", "archive database to read")
	name := fs.String("stream", "", "archived stream name")
	out := fs.String("out", "", "output path (.jsonl or .csv)")
	fs.Parse(args)

	if *archivePath == "" || *name == "" || *out == "" {
		return fmt.Errorf("-archive, -stream and -out are required")
	}
	handler, err := format.ForPath(*out)
	if err != nil {
		return err
	}

	store, err := archive.Open(*archivePath)
	if err != nil {
		return err
	}
	defer store.Close()

	stream, err := store.LoadStream(*name)
	if err != nil {
		return err
	}
	records := make([]replay.Record, 0, stream.Len())
	for i := 0; i < stream.Len(); i++ {
		records = append(records, stream.Record(i))
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := handler.Save(f, records); err != nil {
		return err
	}
	log.Printf("exported %d records from %q to %s", len(records), *name, *out)
	return nil
}

// runInspect prints stats for one or more stream files.
func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(args)
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("no stream files given")
	}

	for _, path := range paths {
		s, err := replay.OpenStream(path)
		if err != nil {
			return err
		}
		st := s.Stats()
		fmt.Printf("%s: %d records", path, st.Count)
		if st.Count > 0 {
			fmt.Printf(", %.3f..%.3f ms", st.MinMs, st.MaxMs)
		}
		if st.Count > 1 {
			fmt.Printf(", %.2f Hz (interval %.3f±%.3f ms, min %.3f, max %.3f)",
				st.RateHz, st.MeanIntervalMs, st.StdDevIntervalMs, st.MinIntervalMs, st.MaxIntervalMs)
		}
		fmt.Println()
	}
	return nil
}
