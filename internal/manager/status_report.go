package manager

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"wastesort/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, Model: m.cur, LastError: m.lastErr}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	resp := types.StatusResponse{
		State:     string(m.state),
		LastError: m.lastErr,
	}
	if lm := m.cur; lm != nil {
		resp.Model = &types.ModelStatus{
			ID:          lm.ID,
			SourceDir:   lm.SourceDir,
			Backend:     lm.Backend,
			Labels:      append([]string(nil), lm.Labels...),
			InputHeight: lm.InputHeight,
			InputWidth:  lm.InputWidth,
			Layout:      lm.Layout.String(),
			LoadedAt:    lm.LoadedAt.Unix(),
			LoadMillis:  lm.LoadTime.Milliseconds(),
		}
	}
	m.mu.RUnlock()

	resp.Candidates = m.Candidates()
	resp.LoadsTotal = m.loadsTotal.Load()
	resp.LoadFailuresTotal = m.failuresTotal.Load()
	resp.ClassificationsTotal = m.classified.Load()
	resp.ProcessRSSBytes, resp.SystemAvailableBytes = hostMemory()
	resp.UptimeSeconds = int64(time.Since(m.startTime).Seconds())
	resp.ServerTimeUnix = time.Now().Unix()
	return resp
}

// hostMemory returns this process's RSS and the system's available memory.
// Zero means unknown.
func hostMemory() (rss, avail uint64) {
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil && mi != nil {
			rss = mi.RSS
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		avail = vm.Available
	}
	return rss, avail
}
