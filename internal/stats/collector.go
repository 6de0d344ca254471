// Package stats samples process resource usage for the --stats flag.
package stats

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// Sample is one point-in-time reading of the process.
type Sample struct {
	Elapsed    time.Duration
	HeapAlloc  uint64
	Sys        uint64
	RSS        uint64
	NumGC      uint32
	CPUPercent float64
	SystemCPU  float64
	Goroutines int
}

// Report is the full run summary returned by Stop.
type Report struct {
	StartTime time.Time
	EndTime   time.Time
	Interval  time.Duration
	Samples   []Sample

	PeakHeapAlloc uint64
	PeakRSS       uint64
	PeakCPU       float64
	AvgCPU        float64
	GCCycles      uint32
}

// Collector samples runtime and process stats on a fixed interval.
type Collector struct {
	mu       sync.Mutex
	samples  []Sample
	start    time.Time
	interval time.Duration
	proc     *process.Process
	stop     chan struct{}
	done     chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}
	return &Collector{
		interval: interval,
		proc:     proc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start() {
	c.start = time.Now()
	go c.loop()
}

func (c *Collector) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stop:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Sample{
		Elapsed:    time.Since(c.start),
		HeapAlloc:  mem.HeapAlloc,
		Sys:        mem.Sys,
		NumGC:      mem.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
		s.RSS = info.RSS
	}
	if pct, err := c.proc.CPUPercent(); err == nil {
		s.CPUPercent = pct
	}
	if sys, err := cpu.Percent(0, false); err == nil && len(sys) > 0 {
		s.SystemCPU = sys[0]
	}

	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

// Stop ends sampling and computes the summary.
func (c *Collector) Stop() Report {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		StartTime: c.start,
		EndTime:   time.Now(),
		Interval:  c.interval,
		Samples:   c.samples,
	}
	var totalCPU float64
	for _, s := range c.samples {
		r.PeakHeapAlloc = max(r.PeakHeapAlloc, s.HeapAlloc)
		r.PeakRSS = max(r.PeakRSS, s.RSS)
		r.PeakCPU = max(r.PeakCPU, s.CPUPercent)
		r.GCCycles = max(r.GCCycles, s.NumGC)
		totalCPU += s.CPUPercent
	}
	if len(c.samples) > 0 {
		r.AvgCPU = totalCPU / float64(len(c.samples))
	}
	return r
}

// SaveToFile writes a human-readable run report.
func (r Report) SaveToFile(filename string) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "run: %s .. %s (%s)\n",
		r.StartTime.Format(time.RFC3339),
		r.EndTime.Format(time.RFC3339),
		r.EndTime.Sub(r.StartTime))
	fmt.Fprintf(&sb, "samples: %d every %s\n\n", len(r.Samples), r.Interval)
	fmt.Fprintf(&sb, "peak heap:  %s\n", humanize.IBytes(r.PeakHeapAlloc))
	fmt.Fprintf(&sb, "peak rss:   %s\n", humanize.IBytes(r.PeakRSS))
	fmt.Fprintf(&sb, "peak cpu:   %.1f%%\n", r.PeakCPU)
	fmt.Fprintf(&sb, "avg cpu:    %.1f%%\n", r.AvgCPU)
	fmt.Fprintf(&sb, "gc cycles:  %d\n\n", r.GCCycles)

	fmt.Fprintf(&sb, "%-12s %-12s %-12s %-8s %-10s\n",
		"elapsed", "heap", "rss", "cpu%", "goroutines")
	for _, s := range r.Samples {
		fmt.Fprintf(&sb, "%-12.1f %-12s %-12s %-8.1f %-10d\n",
			s.Elapsed.Seconds(),
			humanize.IBytes(s.HeapAlloc),
			humanize.IBytes(s.RSS),
			s.CPUPercent,
			s.Goroutines)
	}

	if err := os.WriteFile(filename, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}
