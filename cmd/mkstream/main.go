// Command mkstream generates synthetic sensor stream files for demos
// and tests: a seeded random walk sampled at a fixed rate with optional
// timestamp jitter, written as JSON Lines or CSV.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/banshee-data/sensor.replay/internal/format"
	"github.com/banshee-data/sensor.replay/internal/replay"
)

var (
	out      = flag.String("out", "stream.jsonl", "output path (.jsonl or .csv)")
	sensor   = flag.String("sensor", "synthetic", "sensor name stamped on each record")
	count    = flag.Int("count", 1000, "number of records")
	startMs  = flag.Float64("start-ms", 0, "first timestamp")
	rateHz   = flag.Float64("rate", 10, "sampling rate")
	jitterMs = flag.Float64("jitter-ms", 0, "uniform timestamp jitter")
	seed     = flag.Int64("seed", 1, "random seed (runs are reproducible per seed)")
)

func main() {
	flag.Parse()
	if *count <= 0 || *rateHz <= 0 {
		log.Fatal("count and rate must be positive")
	}

	handler, err := format.ForPath(*out)
	if err != nil {
		log.Fatal(err)
	}

	rng := rand.New(rand.NewSource(*seed))
	intervalMs := 1000 / *rateHz

	value := 0.0
	records := make([]replay.Record, 0, *count)
	for i := 0; i < *count; i++ {
		ts := *startMs + float64(i)*intervalMs
		if *jitterMs > 0 {
			ts += (rng.Float64()*2 - 1) * *jitterMs
		}
		value += rng.NormFloat64()
		records = append(records, replay.Record{
			replay.TimestampField: ts,
			"sensor":              *sensor,
			"value":               value,
			"seq":                 i,
		})
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if err := handler.Save(f, records); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %d records to %s\n", len(records), *out)
}
