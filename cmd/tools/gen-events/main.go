// Command gen-events generates synthetic stereo events with known
// shower parameters for testing the analysis chain end to end.
package main

import (
	"flag"
	"log"
	"math/rand"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/source"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/stereo"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/units"
)

func main() {
	output := flag.String("o", "events.jsonl", "output path")
	count := flag.Int("n", 100, "number of events")
	obsID := flag.Int64("obs", 1, "observation ID")
	seed := flag.Int64("seed", 1, "random seed")
	alt := flag.Float64("alt", 1.2, "shower altitude")
	az := flag.Float64("az", 0.3, "shower azimuth")
	angleUnit := flag.String("units", units.Rad, "angle unit for -alt and -az ("+units.GetValidUnitsString()+")")
	coreSpread := flag.Float64("core-spread", 80, "core scatter radius in metres")
	flag.Parse()

	if !units.IsValid(*angleUnit) {
		log.Fatalf("invalid -units %q, valid values: %s", *angleUnit, units.GetValidUnitsString())
	}
	altRad := units.ToRadians(*alt, *angleUnit)
	azRad := units.ToRadians(*az, *angleUnit)

	geom, err := camera.Hexagonal("magic", 18, 0.03, 17.0)
	if err != nil {
		log.Fatal(err)
	}

	positions := map[int]stereo.Position{
		1: {X: -42.5, Y: 0},
		2: {X: 42.5, Y: 0},
	}
	gen := source.NewGenerator(geom, positions, source.DefaultGeneratorConfig(), *seed)
	rng := rand.New(rand.NewSource(*seed + 1))

	events := make([]source.Event, 0, *count)
	for i := 0; i < *count; i++ {
		truth := source.MCTruth{
			Alt:   altRad,
			Az:    azRad,
			CoreX: (rng.Float64()*2 - 1) * *coreSpread,
			CoreY: (rng.Float64()*2 - 1) * *coreSpread,
		}
		events = append(events, gen.Shower(*obsID, int64(i+1), truth))
		if (i+1)%50 == 0 {
			log.Printf("%d/%d events", i+1, *count)
		}
	}

	if err := source.WriteEventsFile(*output, events); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d events to %s", len(events), *output)
}
