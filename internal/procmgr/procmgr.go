// Package procmgr owns the collection of currently live supervised
// processes, keyed by PID, updates the process metrics, and fans out exit
// events to interested listeners such as the job registry.
package procmgr

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/petri/internal/metrics"
	"github.com/loykin/petri/internal/subscribe"
	"github.com/loykin/petri/internal/supervisor"
)

// ErrUnknownPID is returned for operations on a PID the manager has no
// record of, including PIDs that have already exited.
var ErrUnknownPID = errors.New("procmgr: unknown pid")

// ExitListener is notified once, exactly, when a managed process exits.
type ExitListener func(pid int, exitCode int)

// LogSinkFactory builds the optional per-process log sinks for a spawn
// request once its PID is known, or returns (nil, nil) when info.LogPath is
// empty.
type LogSinkFactory func(info supervisor.StartInfo, pid int) (*supervisor.LogSinks, error)

// Manager tracks every currently-running supervised process.
type Manager struct {
	mu    sync.RWMutex
	procs map[int]*supervisor.Process // insertion order not required for correctness; order used for listing comes from a side slice
	order []int

	ringCapacity int
	logSinks     LogSinkFactory
	listeners    *subscribe.List[ExitListener]
	log          *slog.Logger
}

// New creates an empty Manager. ringCapacity configures every spawned
// process's output ring (0 selects the package default). logSinks may be nil
// if no file-based log sink is ever requested.
func New(ringCapacity int, logSinks LogSinkFactory, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		procs:        make(map[int]*supervisor.Process),
		ringCapacity: ringCapacity,
		logSinks:     logSinks,
		listeners:    subscribe.NewList[ExitListener](),
		log:          log,
	}
}

// AddEventHandler registers a listener invoked on every process exit. The
// returned token unregisters it.
func (m *Manager) AddEventHandler(h ExitListener) *subscribe.Token {
	return m.listeners.Subscribe(h)
}

// AddProcess spawns info and begins tracking it under its new PID.
func (m *Manager) AddProcess(info supervisor.StartInfo) (int, error) {
	var sinkFactory supervisor.LogSinkFactory
	if info.LogPath != "" && m.logSinks != nil {
		sinkFactory = func(pid int) (*supervisor.LogSinks, error) {
			return m.logSinks(info, pid)
		}
	}

	// Holding the lock across Spawn makes handleExit for a child that exits
	// at once wait until its record has been inserted.
	m.mu.Lock()
	p, err := supervisor.Spawn(info, m.ringCapacity, sinkFactory, m.handleExit, m.log)
	if err != nil {
		m.mu.Unlock()
		return 0, err
	}

	m.procs[p.PID()] = p
	m.order = append(m.order, p.PID())
	count := len(m.procs)
	m.mu.Unlock()

	metrics.IncSpawn()
	metrics.SetRunningProcesses(count)

	return p.PID(), nil
}

// StopProcess requests termination of pid and waits for its exit code.
func (m *Manager) StopProcess(ctx context.Context, pid int) (int, error) {
	m.mu.RLock()
	p, ok := m.procs[pid]
	m.mu.RUnlock()
	if !ok {
		return 0, ErrUnknownPID
	}
	code, err := p.Kill(ctx)
	if err == nil {
		metrics.IncStop()
	}
	return code, err
}

// ProcessInfo is a point-in-time view of one tracked process.
type ProcessInfo struct {
	PID       int
	Cmdline   string
	StartedAt time.Time
}

// Processes returns every currently-tracked process, oldest first.
func (m *Manager) Processes() []ProcessInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ProcessInfo, 0, len(m.order))
	for _, pid := range m.order {
		p, ok := m.procs[pid]
		if !ok {
			continue
		}
		out = append(out, ProcessInfo{PID: p.PID(), Cmdline: p.Cmdline(), StartedAt: p.StartedAt()})
	}
	return out
}

// Process returns the live supervisor for pid, if it is still tracked.
func (m *Manager) Process(pid int) (*supervisor.Process, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.procs[pid]
	return p, ok
}

// AttachOutputChannel subscribes ch to pid's output, returning false if pid
// is not currently tracked.
func (m *Manager) AttachOutputChannel(pid int, ch supervisor.OutputSink) (*subscribe.Token, bool) {
	m.mu.RLock()
	p, ok := m.procs[pid]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.AttachOutput(ch), true
}

// Shutdown kills every tracked process and waits for them to exit.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	procs := make([]*supervisor.Process, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.mu.RUnlock()

	for _, p := range procs {
		m.log.Info("killing process on shutdown", "pid", p.PID())
		_, _ = p.Kill(ctx)
	}
}

// handleExit removes pid from the live map before dispatching to listeners,
// so a listener that re-queries the manager observes it as already gone.
func (m *Manager) handleExit(pid int, exitCode int) {
	m.mu.Lock()
	delete(m.procs, pid)
	for i, id := range m.order {
		if id == pid {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	count := len(m.procs)
	m.mu.Unlock()

	metrics.IncExit(exitCode)
	metrics.SetRunningProcesses(count)

	m.listeners.ForEach(func(h ExitListener) { h(pid, exitCode) })
}
