package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/thsensor/thsensor-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByLayer    map[log.Layer]int
	EventsByCategory map[log.Category]int
	Boots            map[string]*BootStats
	Sleep            SleepStats
	Commissioning    CommissioningStats
	FrameCounter     FrameCounterStats
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// BootStats holds statistics for a single boot.
type BootStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	DeviceID   string
	Slept      time.Duration
	FinalState string
}

// SleepStats summarizes sleep entries and wake reconciliation.
type SleepStats struct {
	Entries   int
	ByMode    map[string]int
	Long      int
	PadOnly   int
	Requested time.Duration
	Slept     time.Duration
}

// CommissioningStats summarizes retry timers and state changes.
type CommissioningStats struct {
	Transitions map[string]int
	SteerFires  int
	RejoinFires int
	MaxAttempts uint32
}

// FrameCounterStats counts persists and restores.
type FrameCounterStats struct {
	Persisted      int
	Restored       int
	RestoreMissing int
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:    make(map[log.Layer]int),
		EventsByCategory: make(map[log.Category]int),
		Boots:            make(map[string]*BootStats),
		Sleep:            SleepStats{ByMode: make(map[string]int)},
		Commissioning:    CommissioningStats{Transitions: make(map[string]int)},
	}
}

// Collect reads every event of the log file into Stats.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	boot, ok := s.Boots[event.BootID]
	if !ok {
		boot = &BootStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Boots[event.BootID] = boot
	}
	boot.Events++
	if event.Timestamp.After(boot.LastSeen) {
		boot.LastSeen = event.Timestamp
	}
	if event.DeviceID != "" && boot.DeviceID == "" {
		boot.DeviceID = event.DeviceID
	}

	switch {
	case event.Sleep != nil:
		s.Sleep.Entries++
		s.Sleep.ByMode[event.Sleep.Mode]++
		s.Sleep.Requested += event.Sleep.Duration
		if event.Sleep.Long {
			s.Sleep.Long++
		}
		if event.Sleep.Wakeup == "PAD" {
			s.Sleep.PadOnly++
		}
	case event.Wake != nil:
		s.Sleep.Slept += event.Wake.Elapsed
		boot.Slept += event.Wake.Elapsed
	case event.FrameCounter != nil:
		switch {
		case event.FrameCounter.Action == "persist":
			s.FrameCounter.Persisted++
		case event.FrameCounter.Valid:
			s.FrameCounter.Restored++
		default:
			s.FrameCounter.RestoreMissing++
		}
	case event.Timer != nil:
		if event.Timer.Action == "fire" {
			switch event.Timer.Kind {
			case "steer":
				s.Commissioning.SteerFires++
			case "rejoin":
				s.Commissioning.RejoinFires++
			}
		}
		if event.Timer.Attempt > s.Commissioning.MaxAttempts {
			s.Commissioning.MaxAttempts = event.Timer.Attempt
		}
	case event.StateChange != nil:
		s.Commissioning.Transitions[event.StateChange.NewState]++
		boot.FinalState = event.StateChange.NewState
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Sensor Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerPower, log.LayerTimer, log.LayerCommissioning} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategorySleep, log.CategoryWake, log.CategoryState, log.CategoryTimer, log.CategoryPersist, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	sl := stats.Sleep
	fmt.Fprintf(w, "Sleeps: %d (long %d, pad-only %d)\n", sl.Entries, sl.Long, sl.PadOnly)
	modes := make([]string, 0, len(sl.ByMode))
	for m := range sl.ByMode {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, m := range modes {
		fmt.Fprintf(w, "  %-15s %d\n", m+":", sl.ByMode[m])
	}
	if sl.Entries > 0 {
		fmt.Fprintf(w, "  Requested:      %s\n", sl.Requested.Round(time.Millisecond))
		fmt.Fprintf(w, "  Slept:          %s\n", sl.Slept.Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	c := stats.Commissioning
	fmt.Fprintf(w, "Commissioning: %d steer attempts, %d rejoin attempts, max attempt counter %d\n",
		c.SteerFires, c.RejoinFires, c.MaxAttempts)
	states := make([]string, 0, len(c.Transitions))
	for st := range c.Transitions {
		states = append(states, st)
	}
	sort.Strings(states)
	for _, st := range states {
		fmt.Fprintf(w, "  -> %-12s %d\n", st+":", c.Transitions[st])
	}
	fmt.Fprintln(w)

	fc := stats.FrameCounter
	fmt.Fprintf(w, "Frame Counter: %d persisted, %d restored, %d boots without a record\n",
		fc.Persisted, fc.Restored, fc.RestoreMissing)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Boots: %d\n", len(stats.Boots))
	if len(stats.Boots) > 0 {
		type bootInfo struct {
			id    string
			stats *BootStats
		}
		boots := make([]bootInfo, 0, len(stats.Boots))
		for id, bs := range stats.Boots {
			boots = append(boots, bootInfo{id, bs})
		}
		sort.Slice(boots, func(i, j int) bool {
			return boots[i].stats.FirstSeen.Before(boots[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, b := range boots {
			duration := b.stats.LastSeen.Sub(b.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s, slept %s\n",
				shortenID(b.id), b.stats.Events, duration, b.stats.Slept.Round(time.Millisecond))
			if b.stats.DeviceID != "" {
				fmt.Fprintf(w, "           Device: %s\n", b.stats.DeviceID)
			}
			if b.stats.FinalState != "" {
				fmt.Fprintf(w, "           State:  %s\n", b.stats.FinalState)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
