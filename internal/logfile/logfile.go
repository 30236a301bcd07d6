// Package logfile adapts the daemon's lumberjack-backed rotating writer into
// the supervisor's per-process log sink, used when `run` is given `-l
// <dir>`. Each process gets two rotated files, stdout and stderr, named
// after its program and PID.
package logfile

import (
	"fmt"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/loykin/petri/internal/supervisor"
)

// Default rotation parameters, matching the teacher's logger package.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config controls rotation for every process log sink this daemon opens.
type Config struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Factory returns a procmgr.LogSinkFactory-compatible function bound to c.
// info.LogPath is empty whenever the caller's run request carried no -l
// flag, in which case the returned factory returns (nil, nil).
func (c Config) Factory() func(info supervisor.StartInfo, pid int) (*supervisor.LogSinks, error) {
	return func(info supervisor.StartInfo, pid int) (*supervisor.LogSinks, error) {
		if info.LogPath == "" {
			return nil, nil
		}
		return c.sinks(info.LogPath, info.Program, pid), nil
	}
}

func (c Config) sinks(dir, program string, pid int) *supervisor.LogSinks {
	name := fmt.Sprintf("%s-%d", filepath.Base(program), pid)
	return &supervisor.LogSinks{
		Stdout: c.writer(filepath.Join(dir, name+".stdout.log")),
		Stderr: c.writer(filepath.Join(dir, name+".stderr.log")),
	}
}

func (c Config) writer(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
