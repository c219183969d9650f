package synth

import (
	"fmt"
	"sync"
	"time"
)

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// Stats are running totals over every camera that an Exporter has processed
type Stats struct {
	lock         sync.Mutex
	Collect      TimeAccumulator
	Select       TimeAccumulator
	Render       TimeAccumulator // Includes PNG encoding
	Write        TimeAccumulator
	Frames       int64 // Frames exported
	Detections   int64 // Label lines written
	NoCandidates int64
	NoSelection  int64
	Failed       int64
}

// StatsSnapshot is a copy of Stats that is safe to read
type StatsSnapshot struct {
	Collect      TimeAccumulator
	Select       TimeAccumulator
	Render       TimeAccumulator
	Write        TimeAccumulator
	Frames       int64
	Detections   int64
	NoCandidates int64
	NoSelection  int64
	Failed       int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.lock.Lock()
	defer s.lock.Unlock()
	return StatsSnapshot{
		Collect:      s.Collect,
		Select:       s.Select,
		Render:       s.Render,
		Write:        s.Write,
		Frames:       s.Frames,
		Detections:   s.Detections,
		NoCandidates: s.NoCandidates,
		NoSelection:  s.NoSelection,
		Failed:       s.Failed,
	}
}

func (s *Stats) update(f func(s *Stats)) {
	s.lock.Lock()
	f(s)
	s.lock.Unlock()
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("%v frames, %v labels, %v without candidates, %v without selection, %v failed. Average collect %v, select %v, render %v, write %v",
		s.Frames, s.Detections, s.NoCandidates, s.NoSelection, s.Failed,
		s.Collect.Average(), s.Select.Average(), s.Render.Average(), s.Write.Average())
}
