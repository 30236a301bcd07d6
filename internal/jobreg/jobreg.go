// Package jobreg layers named, restartable job descriptors on top of
// procmgr's live process table. Each job is identified by a deterministic
// SHA-1 digest of its descriptor and the time it was created.
package jobreg

import (
	"context"
	"crypto/sha1" //nolint:gosec // content-addressing, not a security boundary
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/loykin/petri/internal/metrics"
	"github.com/loykin/petri/internal/procmgr"
	"github.com/loykin/petri/internal/supervisor"
)

var (
	// ErrUnknownJid is returned for operations on a jid the registry does
	// not recognize.
	ErrUnknownJid = errors.New("jobreg: unknown job id")
	// ErrAlreadyRunning is returned by StartJob when the job already has a
	// live PID bound to it.
	ErrAlreadyRunning = errors.New("jobreg: job is already running")
	// ErrNotRunning is returned by StopJob when the job has no live PID.
	ErrNotRunning = errors.New("jobreg: job is not running")
	// ErrDuplicateJid is returned by AddJob on the practically-unreachable
	// event of a digest collision.
	ErrDuplicateJid = errors.New("jobreg: job id already in use")
)

// Descriptor is a named, restartable template for spawning a process.
type Descriptor struct {
	StartInfo   supervisor.StartInfo
	AutoRestart bool
}

// digest computes the job id as a 40-character lowercase hex SHA-1 digest of
// the descriptor, seeded with seedMillis (milliseconds since the Unix
// epoch). Environment pairs are hashed in sorted key order for a
// deterministic result independent of Go's randomized map iteration.
func (d Descriptor) digest(seedMillis int64) string {
	h := sha1.New() //nolint:gosec
	var seedBuf [8]byte
	binary.BigEndian.PutUint64(seedBuf[:], uint64(seedMillis))
	h.Write(seedBuf[:])

	h.Write([]byte(d.StartInfo.Program))
	h.Write([]byte("("))
	for _, a := range d.StartInfo.Args {
		h.Write([]byte(a))
		h.Write([]byte(","))
	}
	h.Write([]byte(")"))
	h.Write([]byte(d.StartInfo.Cwd))
	h.Write([]byte("{"))
	keys := make([]string, 0, len(d.StartInfo.Env))
	for k := range d.StartInfo.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte(":"))
		h.Write([]byte(d.StartInfo.Env[k]))
		h.Write([]byte(","))
	}
	h.Write([]byte("}"))
	if d.StartInfo.LogPath != "" {
		h.Write([]byte(d.StartInfo.LogPath))
	}
	if d.AutoRestart {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Record is a job tracked by the registry.
type Record struct {
	Jid          string
	Desc         Descriptor
	CreatedAt    time.Time
	PID          *int
	LastExitCode *int
}

// Registry tracks named jobs and keeps their PID binding in sync with the
// process manager's exit events.
type Registry struct {
	procs *procmgr.Manager

	mu       sync.RWMutex
	jobs     map[string]*Record
	order    []string
	pidIndex map[int]string

	nowMillis func() int64
}

// New creates a Registry bound to procs; it subscribes to procs's exit
// events for the lifetime of the registry.
func New(procs *procmgr.Manager) *Registry {
	r := &Registry{
		procs:     procs,
		jobs:      make(map[string]*Record),
		pidIndex:  make(map[int]string),
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}
	procs.AddEventHandler(r.handleProcessExit)
	return r
}

// AddJob registers desc under a freshly computed jid.
func (r *Registry) AddJob(desc Descriptor) (string, error) {
	jid := desc.digest(r.nowMillis())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[jid]; exists {
		return "", ErrDuplicateJid
	}
	r.jobs[jid] = &Record{Jid: jid, Desc: desc, CreatedAt: time.Now()}
	r.order = append(r.order, jid)
	metrics.SetJobsRegistered(len(r.jobs))
	return jid, nil
}

// StartJob spawns the process for jid, binding its new PID to the job.
func (r *Registry) StartJob(jid string) (int, error) {
	// The lock is held across the spawn so that an exit event for the new
	// PID waits until the PID is bound and indexed.
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[jid]
	if !ok {
		return 0, ErrUnknownJid
	}
	if rec.PID != nil {
		return 0, ErrAlreadyRunning
	}

	pid, err := r.procs.AddProcess(rec.Desc.StartInfo)
	if err != nil {
		return 0, err
	}

	rec.PID = &pid
	r.pidIndex[pid] = jid

	return pid, nil
}

// Jobs returns every tracked job, oldest first.
func (r *Registry) Jobs() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.order))
	for _, jid := range r.order {
		out = append(out, *r.jobs[jid])
	}
	return out
}

// handleProcessExit clears the PID binding for the job, if any, associated
// with pid. It holds the registry's single lock, which guards both the jobs
// map and the pid index, for the whole update.
func (r *Registry) handleProcessExit(pid int, exitCode int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jid, ok := r.pidIndex[pid]
	if !ok {
		return
	}
	rec := r.jobs[jid]
	rec.PID = nil
	code := exitCode
	rec.LastExitCode = &code
	delete(r.pidIndex, pid)
}

// StopJob requests termination of jid's currently-running process.
func (r *Registry) StopJob(ctx context.Context, jid string) (int, error) {
	r.mu.RLock()
	rec, ok := r.jobs[jid]
	r.mu.RUnlock()
	if !ok {
		return 0, ErrUnknownJid
	}
	if rec.PID == nil {
		return 0, ErrNotRunning
	}
	return r.procs.StopProcess(ctx, *rec.PID)
}
