// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs installs a debug-level text logger for the duration of the
// test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var (
		mu  sync.Mutex
		buf bytes.Buffer
	)
	SetLogger(slog.New(slog.NewTextHandler(&lockedWriter{mu: &mu, w: &buf}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	return &buf
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	require.NotNil(t, l)
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		assert.False(t, l.Enabled(context.Background(), level), level)
	}

	h := nopHandler{}
	assert.NoError(t, h.Handle(context.Background(), slog.Record{}))
	assert.IsType(t, nopHandler{}, h.WithAttrs([]slog.Attr{slog.String("k", "v")}))
	assert.IsType(t, nopHandler{}, h.WithGroup("g"))
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)
	l := Logger()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}

func TestLogRenderingTime(t *testing.T) {
	buf := captureLogs(t)

	a := newFakeLayer("a")
	a.labels = true
	a.label = &LabelFeature{Text: "x"}
	s := testSettings(a)
	s.LogRenderingTime = true

	_, err := NewJob(s, WithLabelingEngine(newFakeEngine())).Render(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "rendering time per layer")
	assert.Contains(t, out, "layer=a")
	assert.Contains(t, out, "layer=labeling")
}

func TestLogRenderingTimeDisabled(t *testing.T) {
	buf := captureLogs(t)
	_, err := NewJob(testSettings(newFakeLayer("a"))).Render(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "rendering time per layer")
}

func TestLogRendererPanic(t *testing.T) {
	buf := captureLogs(t)
	a := newFakeLayer("a")
	a.panics = true

	_, err := NewJob(testSettings(a), WithWorkers(1)).Render(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "layer renderer panicked")
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() { Logger().Debug("read") })
		wg.Go(func() {
			SetLogger(slog.Default())
			SetLogger(nil)
		})
	}
	wg.Wait()
}
