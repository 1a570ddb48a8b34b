// Command sensor-replay replays recorded multi-sensor streams: it runs
// declared processing cases, serves the query API, and inspects stream
// files.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/banshee-data/sensor.replay/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: sensor-replay <command> [flags]

commands:
  serve     serve the query API over registered streams
  replay    run a replay case file
  inspect   print statistics for stream files
  export    write an archived stream back to a stream file
  version   print build metadata
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe(args[1:])
	case "replay":
		err = runReplay(args[1:])
	case "inspect":
		err = runInspect(args[1:])
	case "export":
		err = runExport(args[1:])
	case "version":
		fmt.Println(version.String())
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sensor-replay %s: %v\n", args[0], err)
		os.Exit(1)
	}
}
