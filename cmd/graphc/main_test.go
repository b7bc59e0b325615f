package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/topology"
	"github.com/born-ml/graphc/internal/topology/topologytest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GRAPHC_DEBUG", "")
	defer logrus.SetLevel(logrus.InfoLevel)

	var out, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func diamondFile(t *testing.T, e1, e2 bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diamond.yaml")
	require.NoError(t, topology.Save(topologytest.Diamond(t, e1, e2), path))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "graphc "+version+"\n", out)
}

func TestCompileCommand(t *testing.T) {
	out, err := execute(t, "compile", diamondFile(t, false, false))
	require.NoError(t, err)

	assert.Contains(t, out, "conv_im2col_f32+eltwise:sum")
	assert.Contains(t, out, "eltwise:sum(eltw3)")
	assert.Contains(t, out, "alias conv1")
	assert.Contains(t, out, "prepare_conv_eltw_fusing")
	assert.Contains(t, out, "outputs out")
}

func TestCompileWithoutOptimization(t *testing.T) {
	out, err := execute(t, "compile", "--no-optimize", diamondFile(t, false, false))
	require.NoError(t, err)
	assert.Contains(t, out, "eltwise_sum_f32")
	assert.NotContains(t, out, "pass ")
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", diamondFile(t, true, true), "--input", "input=1.1,1.2,1.3,1.4")
	require.NoError(t, err)
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "0.435")
	assert.Contains(t, out, "0.705")
}

func TestRunCommandErrors(t *testing.T) {
	path := diamondFile(t, true, true)

	_, err := execute(t, "run", path)
	assert.ErrorContains(t, err, `no value for input "input"`)

	_, err = execute(t, "run", path, "--input", "input")
	assert.ErrorContains(t, err, "expected name=v1,v2")

	_, err = execute(t, "run", path, "--input", "input=1,2")
	assert.ErrorContains(t, err, `input "input"`)

	_, err = execute(t, "run", path, "--input", "input=1,2,3,4", "--memory-limit", "8")
	assert.True(t, errs.IsAllocation(err))
}

func TestEnvCommand(t *testing.T) {
	t.Setenv("GRAPHC_EXEC_WORKERS", "3")
	out, err := execute(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "GRAPHC_EXEC_WORKERS")
	assert.Contains(t, out, "GRAPHC_MEMORY_LIMIT")
}
