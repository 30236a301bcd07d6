package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/loykin/petri/internal/history"
	"github.com/loykin/petri/internal/jobreg"
	"github.com/loykin/petri/internal/procmgr"
)

// Server accepts connections on a Unix-domain socket and dispatches each
// request to the appropriate command handler.
type Server struct {
	socketPath string
	listener   net.Listener

	procs *procmgr.Manager
	jobs  *jobreg.Registry
	hist  history.Sink

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	logSubscribers atomic.Int64

	log *slog.Logger
}

// NewServer binds socketPath. A stale socket file left behind by a crashed
// prior server causes this to fail; the caller (or operator) must remove it
// first — the daemon never does so automatically.
func NewServer(socketPath string, procs *procmgr.Manager, jobs *jobreg.Registry, hist history.Sink, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	return &Server{
		socketPath: socketPath,
		listener:   ln,
		procs:      procs,
		jobs:       jobs,
		hist:       hist,
		shutdownCh: make(chan struct{}),
		log:        log,
	}, nil
}

// RequestShutdown asks Serve to stop accepting new connections and return.
// It is safe to call more than once or concurrently.
func (s *Server) RequestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Serve accepts connections until ctx is cancelled or RequestShutdown is
// called, then removes the socket file and returns.
func (s *Server) Serve(ctx context.Context) error {
	defer func() {
		_ = s.listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdownCh:
		}
		_ = s.listener.Close()
	}()

	// Connections already in flight when shutdown begins are intentionally
	// not waited on here: the server returns as soon as it stops accepting,
	// and each connection's own goroutine tears itself down independently.
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
				var netErr *net.OpError
				if errors.As(err, &netErr) {
					return nil
				}
				return err
			}
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	connID := uuid.NewString()
	log := s.log.With("conn", connID)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Debug("failed to read request line", "error", err)
		return
	}

	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log.Debug("failed to parse request", "error", err)
		return
	}

	ctx := withClientEnv(context.Background(), ClientEnv{Cwd: req.Cwd, Env: req.Env})
	w := &frameWriter{enc: json.NewEncoder(conn)}

	if err := s.dispatch(ctx, req.Cmd, w, conn); err != nil {
		log.Debug("command handler returned error", "error", err)
	}
}

// frameWriter serializes Output/Response frames, one JSON object per line.
type frameWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *frameWriter) WriteOutput(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(Frame{Output: &s})
}

func (w *frameWriter) WriteResponse(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(Frame{Response: v})
}
