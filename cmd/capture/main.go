// Command capture converts recorded sensor traffic into a stream file:
// it reads UDP packets from a pcap capture, treats each payload as one
// JSON record, stamps timestamp_ms from the capture clock, and writes a
// JSON Lines stream ready for replay.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/sensor.replay/internal/format"
	"github.com/banshee-data/sensor.replay/internal/replay"
)

var (
	in      = flag.String("in", "", "pcap file to read")
	out     = flag.String("out", "stream.jsonl", "output stream path")
	udpPort = flag.Int("port", 2368, "UDP port carrying sensor payloads")
	strict  = flag.Bool("strict", false, "fail on non-JSON payloads instead of skipping them")
)

func main() {
	flag.Parse()
	if *in == "" {
		log.Fatal("-in is required")
	}

	records, skipped, err := extract(*in, *udpPort, *strict)
	if err != nil {
		log.Fatal(err)
	}
	if skipped > 0 {
		log.Printf("skipped %d non-JSON payloads", skipped)
	}

	handler, err := format.ForPath(*out)
	if err != nil {
		log.Fatal(err)
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

// extract pulls JSON payloads from UDP packets on the given port. The
// record timestamp is the packet's capture time in epoch milliseconds;
// a payload's own timestamp_ms, if present, is preserved under
// source_timestamp_ms instead of being overwritten.
func extract(pcapFile string, port int, strict bool) ([]replay.Record, int, error) {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return nil, 0, fmt.Errorf("open pcap %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", port)
	if err := handle.SetBPFFilter(filter); err != nil {
		return nil, 0, fmt.Errorf("set BPF filter %q: %w", filter, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	var records []replay.Record
	skipped := 0
	for packet := range source.Packets() {
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}

		var rec replay.Record
		if err := json.Unmarshal(udp.Payload, &rec); err != nil {
			if strict {
				return nil, skipped, fmt.Errorf("packet %d: non-JSON payload: %w", len(records)+skipped+1, err)
			}
			skipped++
			continue
		}

		captureMs := float64(packet.Metadata().Timestamp.UnixNano()) / 1e6
		if orig, exists := rec[replay.TimestampField]; exists {
			rec["source_timestamp_ms"] = orig
		}
		rec[replay.TimestampField] = captureMs
		records = append(records, rec)
	}
	return records, skipped, nil
}
