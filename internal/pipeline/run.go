package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/monitoring"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/source"
)

// RunStats summarises one pass over an event source.
type RunStats struct {
	EventsRead      int64
	EventsProcessed int64
	Duplicates      int64
	HillasWritten   int64
	StereoWritten   int64
}

// Run drains the source through a worker pool. Workers parameterise
// events concurrently; a single collector goroutine owns the sinks so
// sqlite sees one writer. Events with an event ID already seen in this
// run are dropped.
func (p *Processor) Run(ctx context.Context, src source.EventSource, workers int) (*RunStats, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	stats := &RunStats{}
	jobs := make(chan *source.Event, workers)
	results := make(chan *EventResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range jobs {
				res, err := p.ProcessEvent(ev)
				if err != nil {
					monitoring.Eventf(ev.ObsID, ev.EventID, -1, "event dropped: %v", err)
					continue
				}
				results <- res
			}
		}()
	}

	collectorDone := make(chan error, 1)
	go func() {
		var firstErr error
		for res := range results {
			stats.EventsProcessed++
			for i := range res.Hillas {
				if err := p.Hillas.Insert(&res.Hillas[i]); err != nil {
					monitoring.Logf("pipeline: write hillas event %d: %v", res.EventID, err)
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				stats.HillasWritten++
			}
			if res.Stereo != nil {
				if err := p.Stereo.Insert(res.Stereo); err != nil {
					monitoring.Logf("pipeline: write stereo event %d: %v", res.EventID, err)
					if firstErr == nil {
						firstErr = err
					}
				} else {
					stats.StereoWritten++
				}
			}
		}
		collectorDone <- firstErr
	}()

	var runErr error
	seen := make(map[int64]bool)
readLoop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break readLoop
		default:
		}

		ev, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			runErr = err
			break
		}

		stats.EventsRead++
		if seen[ev.EventID] {
			stats.Duplicates++
			monitoring.Eventf(ev.ObsID, ev.EventID, -1, "duplicate event ID, dropped")
			continue
		}
		seen[ev.EventID] = true
		jobs <- ev
	}

	close(jobs)
	wg.Wait()
	close(results)
	if err := <-collectorDone; err != nil && runErr == nil {
		runErr = err
	}
	return stats, runErr
}
