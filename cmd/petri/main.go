package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/petri/internal/config"
	"github.com/loykin/petri/internal/control"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		serverMode bool
		configPath string
		socketPath string
	)

	root := &cobra.Command{
		Use:           "petri",
		Short:         "A minimalist local process supervisor",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !serverMode {
				return cmd.Help()
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("socket") {
				cfg.Socket.Path = socketPath
			}
			return runServer(cmd.Context(), cfg, slog.Default())
		},
	}
	root.PersistentFlags().BoolVar(&serverMode, "server", false, "run as the daemon instead of a client")
	root.PersistentFlags().StringVar(&configPath, "config", "", "daemon config file (server mode only)")
	root.PersistentFlags().StringVar(&socketPath, "socket", control.DefaultSocketPath, "control socket path")

	root.AddCommand(
		newRunCmd(&socketPath),
		newStopCmd(&socketPath),
		newLogCmd(&socketPath),
		newPsCmd(&socketPath),
		newJobCmd(&socketPath),
		newStopServerCmd(&socketPath),
	)
	return root
}

func newRunCmd(socketPath *string) *cobra.Command {
	var logDir string
	cmd := &cobra.Command{
		Use:   "run -- <cmd> [args...]",
		Short: "Spawn a process under the daemon's supervision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(control.Command{Run: &control.RunCommand{LogPath: logDir, Argv: args}})
			if err != nil {
				return err
			}
			_, err = send(*socketPath, req)
			return err
		},
	}
	cmd.Flags().StringVarP(&logDir, "log-dir", "l", "", "directory to write rotated stdout/stderr log files to")
	return cmd
}

func newStopCmd(socketPath *string) *cobra.Command {
	var pid int
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Terminate a supervised process",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(control.Command{Stop: &control.StopCommand{PID: pid}})
			if err != nil {
				return err
			}
			_, err = send(*socketPath, req)
			return err
		},
	}
	cmd.Flags().IntVarP(&pid, "pid", "p", 0, "process id to stop")
	_ = cmd.MarkFlagRequired("pid")
	return cmd
}

func newLogCmd(socketPath *string) *cobra.Command {
	var pid int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Stream a supervised process's output until it exits or is detached",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(control.Command{Log: &control.LogCommand{PID: pid}})
			if err != nil {
				return err
			}
			_, err = send(*socketPath, req)
			return err
		},
	}
	cmd.Flags().IntVarP(&pid, "pid", "p", 0, "process id to stream output from")
	_ = cmd.MarkFlagRequired("pid")
	return cmd
}

func newPsCmd(socketPath *string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List supervised processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(control.Command{Ps: &control.PsCommand{All: all}})
			if err != nil {
				return err
			}
			raw, err := send(*socketPath, req)
			if err != nil {
				return err
			}
			if raw == nil {
				return nil
			}
			var resp control.PsResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				return err
			}
			printProcesses(resp.Processes)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include jobs that are not currently running")
	return cmd
}

func newJobCmd(socketPath *string) *cobra.Command {
	job := &cobra.Command{Use: "job", Short: "Operate on named job descriptors"}
	job.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List registered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(control.Command{Job: &control.JobCommand{Ls: &struct{}{}}})
			if err != nil {
				return err
			}
			raw, err := send(*socketPath, req)
			if err != nil {
				return err
			}
			if raw == nil {
				return nil
			}
			var resp control.JobLsResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				return err
			}
			printJobs(resp.Jobs)
			return nil
		},
	})
	return job
}

func newStopServerCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-server",
		Short: "Request the daemon to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(control.Command{StopServer: &struct{}{}})
			if err != nil {
				return err
			}
			_, err = send(*socketPath, req)
			return err
		},
	}
}

func printProcesses(procs []control.PsEntry) {
	sort.Slice(procs, func(i, j int) bool { return procs[i].CreatedAt.Secs < procs[j].CreatedAt.Secs })
	for _, p := range procs {
		jid := "-"
		if p.Jid != nil {
			jid = *p.Jid
		}
		pid := "-"
		if p.PID != nil {
			pid = fmt.Sprintf("%d", *p.PID)
		}
		exit := "-"
		if p.LastExitCode != nil {
			exit = fmt.Sprintf("%d", *p.LastExitCode)
		}
		fmt.Printf("%-6s %-42s %-6ds %-30s exit=%s\n", pid, jid, p.UptimeSecs, p.Cmd, exit)
	}
}

func printJobs(jobs []control.JobEntry) {
	for _, j := range jobs {
		pid := "-"
		if j.PID != nil {
			pid = fmt.Sprintf("%d", *j.PID)
		}
		fmt.Printf("%-42s %-6s %s\n", j.Jid, pid, j.Cmd)
	}
}
