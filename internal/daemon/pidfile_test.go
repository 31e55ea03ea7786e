package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	err := pf.WritePID(12345)
	require.NoError(t, err)

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestPIDFile_Write_CurrentPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	err := pf.Write()
	require.NoError(t, err)

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Read_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.pid")
	pf := NewPIDFile(path)

	_, err := pf.Read()
	assert.Error(t, err)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number\n"), 0o644))

	pf := NewPIDFile(path)
	_, err := pf.Read()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID file content")
}

func TestPIDFile_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.WritePID(1))

	err := pf.Remove()
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFile_Remove_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.pid")
	pf := NewPIDFile(path)

	err := pf.Remove()
	assert.Error(t, err)
}

func TestPIDFile_IsRunning_CurrentProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Write())

	pid, running := pf.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_IsRunning_DeadProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	// Use a very high PID that almost certainly doesn't exist.
	require.NoError(t, pf.WritePID(999999))

	pid, running := pf.IsRunning()
	// PID is read regardless.
	assert.Equal(t, 999999, pid)
	assert.False(t, running)
}

func TestPIDFile_IsRunning_NoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.pid")
	pf := NewPIDFile(path)

	pid, running := pf.IsRunning()
	assert.Equal(t, 0, pid)
	assert.False(t, running)
}

func TestPIDFile_Signal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Write())

	// Signal 0 just checks if process exists, doesn't actually send a signal.
	err := pf.Signal(syscall.Signal(0))
	assert.NoError(t, err)
}

func TestPIDFile_Signal_NoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.pid")
	pf := NewPIDFile(path)

	err := pf.Signal(syscall.Signal(0))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read PID file")
}

func TestPIDFile_WritePID_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "judge-serve.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.WritePID(42))
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 42, pid)
}

func TestPIDFile_Acquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judge-serve.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Acquire())
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// Re-acquiring a file that names this process succeeds.
	assert.NoError(t, pf.Acquire())
}

func TestPIDFile_Acquire_StaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judge-serve.pid")
	pf := NewPIDFile(path)
	require.NoError(t, pf.WritePID(999999))

	require.NoError(t, pf.Acquire())
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Acquire_LiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judge-serve.pid")
	pf := NewPIDFile(path)
	require.NoError(t, pf.WritePID(os.Getppid()))

	err := pf.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
}

func TestPIDFile_Release(t *testing.T) {
	dir := t.TempDir()

	own := NewPIDFile(filepath.Join(dir, "own.pid"))
	require.NoError(t, own.Write())
	require.NoError(t, own.Release())
	_, err := os.Stat(own.Path)
	assert.True(t, os.IsNotExist(err))

	other := NewPIDFile(filepath.Join(dir, "other.pid"))
	require.NoError(t, other.WritePID(999999))
	require.NoError(t, other.Release())
	_, err = os.Stat(other.Path)
	assert.NoError(t, err, "a file owned by another pid is left alone")

	missing := NewPIDFile(filepath.Join(dir, "missing.pid"))
	assert.NoError(t, missing.Release())
}

func TestPIDFile_WaitExit(t *testing.T) {
	dead := NewPIDFile(filepath.Join(t.TempDir(), "dead.pid"))
	require.NoError(t, dead.WritePID(999999))
	assert.True(t, dead.WaitExit(context.Background(), time.Second, 10*time.Millisecond))

	alive := NewPIDFile(filepath.Join(t.TempDir(), "alive.pid"))
	require.NoError(t, alive.Write())
	assert.False(t, alive.WaitExit(context.Background(), 50*time.Millisecond, 10*time.Millisecond))
}
