package control

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/loykin/petri/internal/history"
	"github.com/loykin/petri/internal/metrics"
	"github.com/loykin/petri/internal/store"
	"github.com/loykin/petri/internal/supervisor"
)

var errNoCommand = errors.New("control: request carried no recognized command")

func (s *Server) dispatch(ctx context.Context, cmd Command, w *frameWriter, conn net.Conn) error {
	switch {
	case cmd.Run != nil:
		return s.handleRun(ctx, w, *cmd.Run)
	case cmd.Stop != nil:
		return s.handleStop(ctx, w, *cmd.Stop)
	case cmd.Log != nil:
		return s.handleLog(ctx, w, *cmd.Log, conn)
	case cmd.Ps != nil:
		return s.handlePs(w, *cmd.Ps)
	case cmd.Job != nil && cmd.Job.Ls != nil:
		return s.handleJobLs(w)
	case cmd.StopServer != nil:
		return s.handleStopServer(w)
	default:
		_ = w.WriteOutput("unrecognized command\n")
		return errNoCommand
	}
}

func (s *Server) handleRun(ctx context.Context, w *frameWriter, cmd RunCommand) error {
	if len(cmd.Argv) == 0 {
		_ = w.WriteOutput("program must be specified\n")
		return errors.New("control: run requires a non-empty argv")
	}
	env := clientEnvFrom(ctx)

	info := supervisor.StartInfo{
		Program: cmd.Argv[0],
		Args:    cmd.Argv[1:],
		Cwd:     env.Cwd,
		Env:     env.Env,
		LogPath: cmd.LogPath,
	}

	pid, err := s.procs.AddProcess(info)
	if err != nil {
		_ = w.WriteOutput("failed to start the process (maybe it exited too early)\n")
		return err
	}

	s.recordHistory(history.EventStart, store.Record{
		Name:      info.Cmdline(),
		PID:       pid,
		StartedAt: time.Now().UTC(),
		Running:   true,
	})

	return w.WriteOutput(fmt.Sprintf("process started (pid: %d)\n", pid))
}

func (s *Server) handleStop(ctx context.Context, w *frameWriter, cmd StopCommand) error {
	var cmdline string
	var startedAt time.Time
	if p, ok := s.procs.Process(cmd.PID); ok {
		cmdline = p.Cmdline()
		startedAt = p.StartedAt()
	}

	code, err := s.procs.StopProcess(ctx, cmd.PID)
	if err != nil {
		_ = w.WriteOutput("failed to stop the process (is it running?)\n")
		return err
	}

	rec := store.Record{
		Name:      cmdline,
		PID:       cmd.PID,
		StartedAt: startedAt,
		StoppedAt: sql.NullTime{Time: time.Now().UTC(), Valid: true},
		Running:   false,
	}
	if code != 0 {
		rec.ExitErr = sql.NullString{String: fmt.Sprintf("exit code %d", code), Valid: true}
	}
	s.recordHistory(history.EventStop, rec)

	return w.WriteOutput(fmt.Sprintf("process stopped with exit code %d\n", code))
}

func (s *Server) handleLog(ctx context.Context, w *frameWriter, cmd LogCommand, conn net.Conn) error {
	ch := make(supervisor.OutputSink, 64)
	tok, ok := s.procs.AttachOutputChannel(cmd.PID, ch)
	if !ok {
		_ = w.WriteOutput("failed to stream logs from the process (is it running?)\n")
		return fmt.Errorf("control: no process with pid %d", cmd.PID)
	}
	metrics.SetLogSubscribers(int(s.logSubscribers.Add(1)))
	defer func() {
		tok.Close()
		metrics.SetLogSubscribers(int(s.logSubscribers.Add(-1)))
	}()

	// Detect the client disconnecting: since this connection is otherwise
	// write-only from here on, a background read is the only way to notice
	// the peer closing its end.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
	}()

	for {
		select {
		case b, open := <-ch:
			if !open {
				return nil
			}
			if err := w.WriteOutput(supervisor.UTF8Lossy(b)); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}

func (s *Server) handlePs(w *frameWriter, cmd PsCommand) error {
	now := time.Now()
	resp := PsResponse{}

	for _, p := range s.procs.Processes() {
		pid := p.PID
		resp.Processes = append(resp.Processes, PsEntry{
			PID:        &pid,
			Cmd:        p.Cmdline,
			CreatedAt:  toTimestamp(p.StartedAt),
			UptimeSecs: int64(now.Sub(p.StartedAt) / time.Second),
		})
	}

	if cmd.All && s.jobs != nil {
		for _, j := range s.jobs.Jobs() {
			created := toTimestamp(j.CreatedAt)
			uptime := int64(now.Sub(j.CreatedAt) / time.Second)
			jid := j.Jid

			if j.PID != nil {
				for i := range resp.Processes {
					if resp.Processes[i].PID != nil && *resp.Processes[i].PID == *j.PID {
						resp.Processes[i].Jid = &jid
						resp.Processes[i].CreatedAt = created
						resp.Processes[i].UptimeSecs = uptime
					}
				}
				continue
			}

			resp.Processes = append(resp.Processes, PsEntry{
				Jid:          &jid,
				Cmd:          j.Desc.StartInfo.Cmdline(),
				CreatedAt:    created,
				UptimeSecs:   uptime,
				LastExitCode: j.LastExitCode,
			})
		}
	}

	return w.WriteResponse(resp)
}

func toTimestamp(t time.Time) Timestamp {
	return Timestamp{Secs: t.Unix(), Nanos: int32(t.Nanosecond())}
}

func (s *Server) handleJobLs(w *frameWriter) error {
	resp := JobLsResponse{}
	if s.jobs != nil {
		for _, j := range s.jobs.Jobs() {
			jid := j.Jid
			resp.Jobs = append(resp.Jobs, JobEntry{
				Jid:       jid,
				PID:       j.PID,
				Cmd:       j.Desc.StartInfo.Cmdline(),
				CreatedAt: toTimestamp(j.CreatedAt),
			})
		}
	}
	return w.WriteResponse(resp)
}

func (s *Server) handleStopServer(w *frameWriter) error {
	err := w.WriteOutput("requested the server to shutdown\n")
	s.RequestShutdown()
	return err
}

func (s *Server) recordHistory(t history.EventType, rec store.Record) {
	if s.hist == nil {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.hist.Send(sendCtx, history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
			s.log.Debug("history sink send failed", "error", err)
		}
	}()
}
