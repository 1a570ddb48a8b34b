// Command timeline renders an HTML scatter of the merged event timeline
// for a set of stream files: world time on the X axis, one row per
// sensor on the Y axis. Useful for eyeballing offsets and gaps before
// writing a case.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sensor.replay/internal/replay"
)

var (
	out       = flag.String("out", "timeline.html", "output HTML path")
	maxPoints = flag.Int("max-points", 20000, "downsample above this many events")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: timeline [flags] name=path[,offset_ms] ...\n")
	flag.PrintDefaults()
	os.Exit(2)
}

// parseSpec parses "name=path" or "name=path,offset_ms".
func parseSpec(spec string) (name, path string, offsetMs float64, err error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok || name == "" {
		return "", "", 0, fmt.Errorf("bad stream spec %q (want name=path[,offset_ms])", spec)
	}
	path = rest
	if p, o, ok := strings.Cut(rest, ","); ok {
		path = p
		offsetMs, err = strconv.ParseFloat(o, 64)
		if err != nil {
			return "", "", 0, fmt.Errorf("bad offset in %q: %w", spec, err)
		}
	}
	return name, path, offsetMs, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	manager := replay.NewManager()
	var names []string
	for _, spec := range flag.Args() {
		name, path, offsetMs, err := parseSpec(spec)
		if err != nil {
			log.Fatal(err)
		}
		if err := manager.Register(name, path, replay.WithTimeOffset(offsetMs)); err != nil {
			log.Fatal(err)
		}
		names = append(names, name)
	}

	row := make(map[string]int, len(names))
	for i, name := range manager.Names() {
		row[name] = i
	}

	events := manager.Events().Drain()
	stride := 1
	if len(events) > *maxPoints {
		stride = (len(events) + *maxPoints - 1) / *maxPoints
	}

	series := make(map[string][]opts.ScatterData, len(names))
	for i := 0; i < len(events); i += stride {
		ev := events[i]
		for name := range ev.Records {
			series[name] = append(series[name], opts.ScatterData{
				Value: []interface{}{ev.TimeMs, row[name]},
			})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Sensor Timeline", Width: "1400px", Height: "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Sensor event timeline",
			Subtitle: fmt.Sprintf("%d events, stride=%d", len(events), stride),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "world time (ms)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "sensor", Min: -1, Max: len(names)}),
	)
	for _, name := range manager.Names() {
		scatter.AddSeries(name, series[name],
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%d events)\n", *out, len(events))
}
