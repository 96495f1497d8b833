// Command replay plays a recorded run out of the sample store onto the bus,
// preserving the recorded inter-sample timing, so the estimator can be
// re-run against captured sensor data.
package main

import (
	"flag"
	"log"
	"sort"
	"time"

	"github.com/banshee-data/flowfusion/internal/bus"
	"github.com/banshee-data/flowfusion/internal/fusiondb"
)

var (
	dbPath = flag.String("db", "fusion_data.db", "Path to sample store")
	runID  = flag.String("run", "", "Run ID to replay (empty: most recent)")
	broker = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	speed  = flag.Float64("speed", 1.0, "Playback speed factor")
)

// event is one recorded sample of either stream, ready to publish.
type event struct {
	unixNanos int64
	topic     string
	message   any
}

func main() {
	flag.Parse()

	if *speed <= 0 {
		log.Fatal("speed factor must be positive")
	}

	store, err := fusiondb.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	run := *runID
	if run == "" {
		runs, err := store.ListRuns()
		if err != nil {
			log.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			log.Fatal("store contains no runs")
		}
		run = runs[len(runs)-1]
	}

	events, err := loadEvents(store, run)
	if err != nil {
		log.Fatalf("failed to load run %s: %v", run, err)
	}
	if len(events) == 0 {
		log.Fatalf("run %s contains no samples", run)
	}

	b, err := bus.NewMQTTBus(*broker, "flowfusion-replay")
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer b.Close()

	log.Printf("replaying run %s: %d samples at %.2fx", run, len(events), *speed)

	prev := events[0].unixNanos
	for _, e := range events {
		if wait := time.Duration(float64(e.unixNanos-prev) / *speed); wait > 0 {
			time.Sleep(wait)
		}
		prev = e.unixNanos

		if err := bus.PublishJSON(b, e.topic, e.message); err != nil {
			log.Printf("failed to publish %s sample: %v", e.topic, err)
		}
	}

	log.Printf("replay complete")
}

// loadEvents merges both sample streams of a run into one timeline.
func loadEvents(store *fusiondb.DB, runID string) ([]event, error) {
	accel, err := store.LoadAccelSamples(runID)
	if err != nil {
		return nil, err
	}
	flow, err := store.LoadFlowSamples(runID)
	if err != nil {
		return nil, err
	}

	events := make([]event, 0, len(accel)+len(flow))
	for _, m := range accel {
		events = append(events, event{m.UnixNanos, bus.TopicAccel, m})
	}
	for _, m := range flow {
		events = append(events, event{m.UnixNanos, bus.TopicFlowSpeed, m})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].unixNanos < events[j].unixNanos
	})
	return events, nil
}
