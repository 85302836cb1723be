package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"camscout/internal/config"
	"camscout/internal/interrupt"
	"camscout/internal/pipeline"
	"camscout/internal/plugin"
	"camscout/internal/repository"
	"camscout/internal/repository/memory"
)

type countingTask struct {
	runs int
	err  error
}

func (t *countingTask) Name() string { return "counting" }

func (t *countingTask) Run(ctx context.Context) error {
	t.runs++
	return t.err
}

// unconfigurable fails its one-time setup
type unconfigurable struct {
	*memory.Store
}

func (u unconfigurable) Configure(ctx context.Context, cfg config.StoreConfig) error {
	return repository.ErrConfigure
}

func testLoader(t *testing.T) *plugin.Loader {
	t.Helper()
	registry := plugin.DefaultRegistry()
	require.NoError(t, registry.Register("unconfigurable", func(logger *zap.Logger) repository.Store {
		return unconfigurable{memory.New(logger)}
	}))
	return plugin.NewLoader(registry, t.TempDir(), "", zaptest.NewLogger(t))
}

// factory hands out a dispatcher running task and records whether it was asked
func factory(controller *interrupt.Controller, task *countingTask, built *bool) pipelineFactory {
	return func(store repository.Store) (*pipeline.Dispatcher, error) {
		*built = true
		d := pipeline.NewDispatcher(controller, nil, nil)
		d.Add(task)
		return d, nil
	}
}

func TestExecute_StoreFailureRunsNoTask(t *testing.T) {
	tests := []struct {
		name    string
		backend string
	}{
		{"unknown backend", "doesnotexist"},
		{"empty backend", ""},
		{"configure fails", "unconfigurable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &countingTask{}
			var built bool

			code := execute(context.Background(), config.StoreConfig{Backend: tt.backend}, testLoader(t),
				zaptest.NewLogger(t), factory(interrupt.New(), task, &built))

			assert.Equal(t, exitSetup, code)
			assert.False(t, built, "pipeline must not be built without a store")
			assert.Zero(t, task.runs)
		})
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	stopped := interrupt.New()
	stopped.Interrupt()

	tests := []struct {
		name       string
		controller *interrupt.Controller
		taskErr    error
		wantCode   int
		wantRuns   int
	}{
		{"success", interrupt.New(), nil, exitOK, 1},
		{"task failure", interrupt.New(), errors.New("no hosts"), exitTaskFailed, 1},
		{"stopped before start", stopped, nil, exitInterrupted, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &countingTask{err: tt.taskErr}
			var built bool

			code := execute(context.Background(), config.StoreConfig{Backend: memory.Name}, testLoader(t),
				zaptest.NewLogger(t), factory(tt.controller, task, &built))

			assert.Equal(t, tt.wantCode, code)
			assert.True(t, built)
			assert.Equal(t, tt.wantRuns, task.runs)
		})
	}
}

func TestExecute_BuildFailure(t *testing.T) {
	code := execute(context.Background(), config.StoreConfig{Backend: memory.Name}, testLoader(t), zaptest.NewLogger(t),
		func(repository.Store) (*pipeline.Dispatcher, error) { return nil, errors.New("empty dictionary") })
	assert.Equal(t, exitSetup, code)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.0/24"}, splitList(" 10.0.0.1, ,10.0.0.0/24 "))
	assert.Empty(t, splitList(""))
}
