// Command ifgchart renders the inter-frame gap timeline of a recorded
// simulation trace. Each trace channel becomes one band of frame boxes, the
// gap before each frame is annotated in byte times, and gaps below the
// minimum are flagged.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"sort"

	"github.com/simlink/ethphy/cmd/ifgchart/tlplot"
	"github.com/simlink/ethphy/sim/component"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	tracePath = flag.String("trace", "", "path to a trace CSV recorded during simulation")
	speedMbps = flag.Int("speed", 1000, "link speed in Mb/s, for byte time conversion")
	minGap    = flag.Int("min-gap", 12, "minimum acceptable inter-frame gap in bytes")
	outPath   = flag.String("out", "", "write the timeline to this PNG file")
	show      = flag.Bool("show", false, "open the timeline in a window")
)

func main() {
	flag.Parse()
	if *tracePath == "" || (*outPath == "" && !*show) {
		flag.Usage()
		log.Fatal("need -trace and at least one of -out or -show")
	}

	events, err := component.DecodeTrace(*tracePath)
	if err != nil {
		log.Fatal(err)
	}

	p, err := buildTimeline(events, *speedMbps, *minGap)
	if err != nil {
		log.Fatal(err)
	}

	if *outPath != "" {
		if err := tlplot.SavePlot(p, 40*vg.Centimeter, 15*vg.Centimeter, *outPath, "png"); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", *outPath)
	}
	if *show {
		if err := tlplot.DisplayPlot(p, "."); err != nil {
			log.Fatal(err)
		}
	}
}

func buildTimeline(events []component.TraceEvent, speedMbps, minGap int) (*plot.Plot, error) {
	if speedMbps <= 0 {
		return nil, fmt.Errorf("invalid speed %d Mb/s", speedMbps)
	}
	byteTimeNs := 8000.0 / float64(speedMbps)

	byChannel := map[string][]component.TraceEvent{}
	for _, ev := range events {
		if ev.Event != "tx" && ev.Event != "rx" {
			continue
		}
		byChannel[ev.Channel] = append(byChannel[ev.Channel], ev)
	}
	if len(byChannel) == 0 {
		return nil, fmt.Errorf("no frame events in trace")
	}

	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	p := plot.New()
	p.Title.Text = "Frame timeline"
	p.X.Label.Text = "time (us)"
	p.NominalY(channels...)

	frameColor := color.RGBA{R: 0x88, G: 0xBB, B: 0xFF, A: 0xFF}
	violation := draw.GlyphStyle{
		Color:  color.RGBA{R: 0xDD, A: 0xFF},
		Radius: vg.Points(4),
		Shape:  draw.RingGlyph{},
	}

	for loc, ch := range channels {
		frames := byChannel[ch]
		var spans []tlplot.Span
		var markers []tlplot.Marker
		gapTotal := 0.0

		for i, ev := range frames {
			start := float64(ev.Timestamp.Nanoseconds()) / 1000.0
			end := start + float64(len(ev.Bytes))*byteTimeNs/1000.0
			spans = append(spans, tlplot.Span{
				Start: start,
				End:   end,
				Color: frameColor,
				Label: fmt.Sprintf("%d B", len(ev.Bytes)),
			})

			if i > 0 {
				prev := frames[i-1]
				prevEnd := float64(prev.Timestamp.Nanoseconds())/1000.0 +
					float64(len(prev.Bytes))*byteTimeNs/1000.0
				gap := (start - prevEnd) * 1000.0 / byteTimeNs
				gapTotal += gap
				if int(gap) < minGap {
					markers = append(markers, tlplot.Marker{
						Time:  start,
						Glyph: violation,
						Label: fmt.Sprintf("gap=%.1f", gap),
					})
				}
			}
		}

		if len(frames) > 1 {
			log.Printf("channel %s: %d frames, mean gap %.2f byte times",
				ch, len(frames), gapTotal/float64(len(frames)-1))
		}
		p.Add(tlplot.NewBand(spans, markers, float64(loc), vg.Points(20)))
	}

	return p, nil
}
