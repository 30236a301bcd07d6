// Package control implements the daemon's control plane: a Unix-domain
// socket accepting one newline-delimited JSON request per connection and
// streaming back zero or more Output frames followed by at most one
// Response frame.
package control

// Request is the single line a client sends when it opens a connection.
type Request struct {
	Cmd Command           `json:"cmd"`
	Cwd string             `json:"cwd"`
	Env map[string]string `json:"env"`
}

// Command is an externally-tagged union; exactly one field is set.
type Command struct {
	Run        *RunCommand    `json:"Run,omitempty"`
	Stop       *StopCommand   `json:"Stop,omitempty"`
	Log        *LogCommand    `json:"Log,omitempty"`
	Ps         *PsCommand     `json:"Ps,omitempty"`
	Job        *JobCommand    `json:"Job,omitempty"`
	StopServer *struct{}      `json:"StopServer,omitempty"`
}

// RunCommand spawns a new process.
type RunCommand struct {
	LogPath string   `json:"log_path,omitempty"`
	Argv    []string `json:"argv"`
}

// StopCommand terminates a running process.
type StopCommand struct {
	PID int `json:"pid"`
}

// LogCommand streams a running process's output.
type LogCommand struct {
	PID int `json:"pid"`
}

// PsCommand lists processes, optionally including non-running jobs.
type PsCommand struct {
	All bool `json:"all,omitempty"`
}

// JobCommand is itself a tagged union of job subcommands.
type JobCommand struct {
	Ls *struct{} `json:"Ls,omitempty"`
}

// Frame is one line sent from server to client.
type Frame struct {
	Output   *string `json:"Output,omitempty"`
	Response any     `json:"Response,omitempty"`
}

// Timestamp transports a point in time as seconds+nanoseconds, avoiding any
// dependence on the two ends sharing a timezone.
type Timestamp struct {
	Secs  int64 `json:"secs"`
	Nanos int32 `json:"nanos"`
}

// PsEntry describes one process in a `ps` response.
type PsEntry struct {
	Jid          *string   `json:"jid,omitempty"`
	PID          *int      `json:"pid,omitempty"`
	Cmd          string    `json:"cmd"`
	CreatedAt    Timestamp `json:"created_at"`
	UptimeSecs   int64     `json:"uptime_secs"`
	LastExitCode *int      `json:"last_exit_code,omitempty"`
}

// PsResponse is the structured reply to `ps`.
type PsResponse struct {
	Processes []PsEntry `json:"processes"`
}

// JobEntry describes one job in a `job ls` response.
type JobEntry struct {
	Jid       string    `json:"jid"`
	PID       *int      `json:"pid,omitempty"`
	Cmd       string    `json:"cmd"`
	CreatedAt Timestamp `json:"created_at"`
}

// JobLsResponse is the structured reply to `job ls`.
type JobLsResponse struct {
	Jobs []JobEntry `json:"jobs"`
}
