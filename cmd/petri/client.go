package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/loykin/petri/internal/control"
)

const (
	maxConnectRetries = 4
	retryBackoff      = time.Second
)

// buildRequest wraps cmd with the client's own cwd and environment, which
// the daemon threads through to any spawned process.
func buildRequest(cmd control.Command) (control.Request, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return control.Request{}, fmt.Errorf("determine working directory: %w", err)
	}
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return control.Request{Cmd: cmd, Cwd: cwd, Env: env}, nil
}

// send dials socketPath, writes req, and streams Output frames to stdout as
// they arrive, returning the decoded Response frame's raw JSON, if any. If
// no daemon is listening, it daemonizes one and retries up to
// maxConnectRetries times with a one-second backoff.
func send(socketPath string, req control.Request) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	payload = append(payload, '\n')

	daemonStartedByUs := false
	var lastErr error
	for attempt := 0; attempt <= maxConnectRetries; attempt++ {
		resp, err := tryOnce(socketPath, payload)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, errServerNotStarted) {
			if !daemonStartedByUs {
				fmt.Println("starting the server as daemon...")
				if startErr := startDaemon(socketPath); startErr != nil {
					return nil, fmt.Errorf("start daemon: %w", startErr)
				}
				daemonStartedByUs = true
			}
		} else {
			fmt.Println("error occurred while connecting to server:", err)
		}
		lastErr = err
		if attempt < maxConnectRetries {
			time.Sleep(retryBackoff)
		}
	}
	return nil, fmt.Errorf("failed to talk to the server: %w", lastErr)
}

var errServerNotStarted = errors.New("client: server not started")

func tryOnce(socketPath string, payload []byte) (json.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, errServerNotStarted
		}
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(payload); err != nil {
		return nil, err
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		var frame control.Frame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return nil, fmt.Errorf("decode response frame: %w", err)
		}
		if frame.Output != nil {
			fmt.Print(*frame.Output)
			continue
		}
		if frame.Response != nil {
			raw, err := json.Marshal(frame.Response)
			if err != nil {
				return nil, err
			}
			return raw, nil
		}
	}
}
