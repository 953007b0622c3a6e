package ytdlp

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats contains resource usage statistics for a downloader process.
type ProcessStats struct {
	PID int `json:"pid"`

	// CPUPercent is the current CPU usage as a percentage (0-100 per core).
	CPUPercent float64 `json:"cpu_percent"`

	// MemoryRSSBytes is the resident set size in bytes.
	MemoryRSSBytes uint64 `json:"memory_rss_bytes"`
	// MemoryPercent is memory usage as a percentage of total system memory.
	MemoryPercent float64 `json:"memory_percent"`

	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	LastUpdated time.Time     `json:"last_updated"`
}

// ProcessMonitor samples resource usage of a downloader process.
type ProcessMonitor struct {
	pid       int
	startedAt time.Time
	interval  time.Duration

	mu    sync.RWMutex
	stats ProcessStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessMonitor creates a new process monitor.
func NewProcessMonitor(pid int) *ProcessMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessMonitor{
		pid:       pid,
		startedAt: time.Now(),
		interval:  2 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins monitoring the process.
func (pm *ProcessMonitor) Start() {
	pm.wg.Add(1)
	go pm.monitorLoop()
}

// Stop stops monitoring the process.
func (pm *ProcessMonitor) Stop() {
	pm.cancel()
	pm.wg.Wait()
}

// Stats returns the current process statistics.
func (pm *ProcessMonitor) Stats() ProcessStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.stats
}

func (pm *ProcessMonitor) monitorLoop() {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.sample()

	for {
		select {
		case <-pm.ctx.Done():
			return
		case <-ticker.C:
			pm.sample()
		}
	}
}

// sample takes a snapshot of process statistics.
func (pm *ProcessMonitor) sample() {
	now := time.Now()

	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.stats.PID = pm.pid
	pm.stats.StartedAt = pm.startedAt
	pm.stats.Duration = now.Sub(pm.startedAt)
	pm.stats.LastUpdated = now

	proc, err := process.NewProcessWithContext(pm.ctx, int32(pm.pid))
	if err != nil {
		// Process may have exited
		return
	}

	if cpu, err := proc.CPUPercentWithContext(pm.ctx); err == nil {
		pm.stats.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfoWithContext(pm.ctx); err == nil && mem != nil {
		pm.stats.MemoryRSSBytes = mem.RSS
	}
	if memPct, err := proc.MemoryPercentWithContext(pm.ctx); err == nil {
		pm.stats.MemoryPercent = float64(memPct)
	}
}
