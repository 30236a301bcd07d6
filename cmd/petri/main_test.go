package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loykin/petri/internal/control"
)

func TestBuildRequestCarriesCwdAndEnv(t *testing.T) {
	t.Setenv("PETRI_TEST_VAR", "hello")

	req, err := buildRequest(control.Command{Ps: &control.PsCommand{}})
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, wd, req.Cwd)
	require.Equal(t, "hello", req.Env["PETRI_TEST_VAR"])
	require.NotNil(t, req.Cmd.Ps)
}

func TestPrintProcessesAndJobsDoNotPanicOnEmptyInput(t *testing.T) {
	require.NotPanics(t, func() { printProcesses(nil) })
	require.NotPanics(t, func() { printJobs(nil) })
}
