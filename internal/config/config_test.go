package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/rowsplit/internal/matrix"
)

func env(vars map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

const demoJob = `
listen: "127.0.0.1:7000"
status_addr: ":7001"
workers: 3
frame_timeout: 2s
trace: true
a:
  - [1, 2]
  - [3, 4]
b:
  - [1, 0]
  - [0, 1]
`

func TestParse(t *testing.T) {
	job, err := Parse([]byte(demoJob))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", job.Listen)
	assert.Equal(t, ":7001", job.StatusAddr)
	assert.Equal(t, "tcp", job.Transport)
	assert.Equal(t, "json", job.Codec)
	assert.Equal(t, 3, job.Workers)
	assert.Equal(t, 2*time.Second, job.FrameTimeout)
	assert.True(t, job.Trace)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}}, job.A)
	require.NoError(t, job.Validate())

	a, b, err := job.Operands()
	require.NoError(t, err)
	assert.Equal(t, "2x2", a.Shape())
	assert.Equal(t, "2x2", b.Shape())

	opts := job.TransportOptions()
	assert.Equal(t, 2*time.Second, opts.FrameTimeout)
}

func TestParseDefaults(t *testing.T) {
	job, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, job.Listen)
	assert.Equal(t, DefaultStatusAddr, job.StatusAddr)
	assert.Equal(t, DefaultWorkers, job.Workers)
	assert.Equal(t, DefaultFrameTimeout, job.FrameTimeout)
	assert.NoError(t, job.Validate())
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("wokers: 3\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demoJob), 0o600))

	job, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, job.Workers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestLoadDemoJob keeps the shipped demo configuration valid.
func TestLoadDemoJob(t *testing.T) {
	job, err := Load(filepath.Join("..", "..", "deploy", "demo-job.yaml"))
	require.NoError(t, err)
	require.NoError(t, job.Validate())
	assert.Equal(t, 2, job.Workers)

	a, b, err := job.Operands()
	require.NoError(t, err)
	want, err := matrix.Multiply(a, b)
	require.NoError(t, err)
	assert.True(t, want.Equal(a), "demo multiplies by the identity")
}

func TestApplyEnv(t *testing.T) {
	job, err := Parse([]byte(demoJob))
	require.NoError(t, err)

	require.NoError(t, job.ApplyEnv(env(map[string]string{
		"COORDINATOR_ADDR": ":9100",
		"WORKERS":          "5",
		"TRANSPORT":        "websocket",
		"CODEC":            "msgpack",
		"STATUS_ADDR":      "",
	})))

	assert.Equal(t, ":9100", job.Listen)
	assert.Equal(t, ":7001", job.StatusAddr, "empty value keeps file setting")
	assert.Equal(t, 5, job.Workers)
	assert.Equal(t, "websocket", job.Transport)
	assert.Equal(t, "msgpack", job.Codec)
	assert.NoError(t, job.Validate())

	err = job.ApplyEnv(env(map[string]string{"WORKERS": "many"}))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Job)
	}{
		{name: "no workers", mutate: func(j *Job) { j.Workers = 0 }},
		{name: "negative timeout", mutate: func(j *Job) { j.FrameTimeout = -time.Second }},
		{name: "negative frame limit", mutate: func(j *Job) { j.MaxFrameBytes = -1 }},
		{name: "unknown transport", mutate: func(j *Job) { j.Transport = "udp" }},
		{name: "unknown codec", mutate: func(j *Job) { j.Codec = "xml" }},
		{name: "msgpack over tcp", mutate: func(j *Job) { j.Codec = "msgpack" }},
		{name: "ragged a", mutate: func(j *Job) { j.A = [][]int64{{1, 2}, {3}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := Parse([]byte(demoJob))
			require.NoError(t, err)
			tt.mutate(&job)
			assert.ErrorIs(t, job.Validate(), ErrInvalid)
		})
	}
}

func TestWorkerFromEnv(t *testing.T) {
	w, err := WorkerFromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", w.CoordinatorAddr)
	assert.Equal(t, "tcp", w.Transport)
	assert.Equal(t, 1, w.Threads)
	assert.False(t, w.Trace)
	assert.Equal(t, DefaultDialAttempts, w.DialAttempts)

	w, err = WorkerFromEnv(env(map[string]string{
		"COORDINATOR_ADDR": "ws://coordinator:8080/ws",
		"TRANSPORT":        "websocket",
		"CODEC":            "msgpack",
		"WORKER_THREADS":   "4",
		"WORKER_TRACE":     "true",
		"FRAME_TIMEOUT":    "750ms",
		"DIAL_ATTEMPTS":    "2",
	}))
	require.NoError(t, err)
	assert.Equal(t, "ws://coordinator:8080/ws", w.CoordinatorAddr)
	assert.Equal(t, 4, w.Threads)
	assert.True(t, w.Trace)
	assert.Equal(t, 750*time.Millisecond, w.FrameTimeout)
	assert.Equal(t, 2, w.DialAttempts)
}

func TestWorkerFromEnvRejects(t *testing.T) {
	for _, vars := range []map[string]string{
		{"WORKER_THREADS": "0"},
		{"WORKER_THREADS": "x"},
		{"WORKER_TRACE": "maybe"},
		{"FRAME_TIMEOUT": "soon"},
		{"CODEC": "msgpack"},
	} {
		_, err := WorkerFromEnv(env(vars))
		assert.ErrorIs(t, err, ErrInvalid, "%v", vars)
	}
}
