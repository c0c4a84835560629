// Package logfile owns the session log file: it picks a fresh sequential
// name at startup, appends encoded records, and periodically forces them
// to stable storage without closing the file.
package logfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"

	"telemetry-logger/utils"
)

var (
	ErrClosed         = errors.New("logfile: session closed")
	ErrIndexExhausted = errors.New("logfile: no free log index")
	ErrBackpressure   = errors.New("logfile: pending buffer full")
)

// Config describes where and how the session file is written.
type Config struct {
	Dir           string
	Prefix        string
	IndexWidth    int
	FlushInterval uint32 // ticks between forced syncs
	BufferSize    int    // pending bytes before a write-through
	MaxFileBytes  int64  // 0 disables rotation
	Retry         utils.RetryConfig
}

// ConfigFrom converts the YAML storage section to ticks and bytes.
func ConfigFrom(sc utils.StorageConfig, ticksPerSecond uint32) Config {
	return Config{
		Dir:           sc.Dir,
		Prefix:        sc.Prefix,
		IndexWidth:    sc.IndexWidth,
		FlushInterval: utils.MsToTicks(sc.FlushIntervalMs, ticksPerSecond),
		BufferSize:    sc.BufferSizeKB * 1024,
		MaxFileBytes:  sc.MaxFileBytes,
		Retry:         utils.DefaultRetryConfig(),
	}
}

// file is the subset of *os.File the manager needs.
type file interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

type opener func(path string) (file, error)

func createExclusive(path string) (file, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Manager is the exclusive owner of the active log file.
type Manager struct {
	mu   sync.Mutex
	cfg  Config
	open opener

	file    file
	path    string
	index   int
	written int64 // bytes in the current file

	pending    []byte
	maxPending int

	lastFlush    uint32
	flushPrimed  bool
	closed       bool
	totalBytes   uint64
	flushes      uint64
	flushErrors  uint64
	droppedBytes uint64
	rotations    uint64
}

// OpenSession creates the lowest-numbered log file that does not exist
// yet and returns a manager positioned at its start. Existing files are
// never opened, appended to, or truncated.
func OpenSession(ctx context.Context, cfg Config) (*Manager, error) {
	return openSession(ctx, cfg, createExclusive)
}

func openSession(ctx context.Context, cfg Config, open opener) (*Manager, error) {
	if cfg.IndexWidth <= 0 {
		cfg.IndexWidth = 4
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64 * 1024
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, utils.StorageFatal("create log dir", err)
		}
	}

	m := &Manager{
		cfg:        cfg,
		open:       open,
		pending:    make([]byte, 0, cfg.BufferSize),
		maxPending: 4 * cfg.BufferSize,
	}

	err := utils.Retry(ctx, cfg.Retry, func() error {
		f, path, idx, err := m.create(0)
		if err != nil {
			return err
		}
		m.file, m.path, m.index = f, path, idx
		return nil
	})
	if err != nil {
		if utils.IsFatal(err) {
			return nil, err
		}
		return nil, utils.StorageFatal("open session", err)
	}

	utils.L().Info("log session opened  file=%s", m.path)
	return m, nil
}

// FileName returns "<prefix>-<NNNN>.log" for idx.
func FileName(prefix string, width, idx int) string {
	return fmt.Sprintf("%s-%0*d.log", prefix, width, idx)
}

func (m *Manager) maxIndex() int {
	return int(math.Pow10(m.cfg.IndexWidth)) - 1
}

// create claims the first free index at or above from.
func (m *Manager) create(from int) (file, string, int, error) {
	for idx := from; idx <= m.maxIndex(); idx++ {
		path := filepath.Join(m.cfg.Dir, FileName(m.cfg.Prefix, m.cfg.IndexWidth, idx))
		f, err := m.open(path)
		if err == nil {
			return f, path, idx, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return nil, "", 0, utils.Transient("create "+path, err)
	}
	return nil, "", 0, utils.StorageFatal("create", ErrIndexExhausted)
}

// Write appends p to the session. Bytes are staged in memory and written
// through once BufferSize is reached. A failed write keeps the unwritten
// bytes pending for the next attempt and returns a transient error.
func (m *Manager) Write(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if len(m.pending)+len(p) > m.maxPending {
		m.droppedBytes += uint64(len(p))
		return utils.Transient("write", ErrBackpressure)
	}
	m.pending = append(m.pending, p...)
	if len(m.pending) >= m.cfg.BufferSize {
		return m.writePendingLocked()
	}
	return nil
}

func (m *Manager) writePendingLocked() error {
	if len(m.pending) == 0 {
		return nil
	}
	n, err := m.file.Write(m.pending)
	m.written += int64(n)
	m.totalBytes += uint64(n)
	m.pending = m.pending[:copy(m.pending, m.pending[n:])]
	if err != nil {
		return utils.Transient("write "+m.path, err)
	}
	return nil
}

// FlushIfDue syncs the file when FlushInterval ticks have passed since the
// previous flush. The first call only starts the interval. A failed flush
// is retried at the next interval. Returns true when a flush was attempted.
func (m *Manager) FlushIfDue(now uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}
	if !m.flushPrimed {
		m.lastFlush, m.flushPrimed = now, true
		return false, nil
	}
	if now-m.lastFlush < m.cfg.FlushInterval {
		return false, nil
	}
	m.lastFlush = now

	if err := m.flushLocked(); err != nil {
		return true, err
	}
	if m.cfg.MaxFileBytes > 0 && m.written >= m.cfg.MaxFileBytes {
		if err := m.rotateLocked(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Flush writes pending bytes and syncs the file immediately.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.flushLocked()
}

func (m *Manager) flushLocked() error {
	m.flushes++
	if err := m.writePendingLocked(); err != nil {
		m.flushErrors++
		return err
	}
	if err := m.file.Sync(); err != nil {
		m.flushErrors++
		return utils.Transient("sync "+m.path, err)
	}
	return nil
}

// rotateLocked moves the session to the next free index. The new file is
// created before the old one is closed so a failure leaves logging intact.
func (m *Manager) rotateLocked() error {
	f, path, idx, err := m.create(m.index + 1)
	if err != nil {
		return err
	}
	if err := m.file.Close(); err != nil {
		utils.L().Warn("log rotate: close %s: %v", m.path, err)
	}
	utils.L().Info("log rotated  %s -> %s  (%d bytes)", m.path, path, m.written)
	m.file, m.path, m.index, m.written = f, path, idx, 0
	m.rotations++
	return nil
}

// Close performs a final flush and closes the file. Safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	flushErr := m.flushLocked()
	closeErr := m.file.Close()
	utils.L().Info("log session closed  file=%s  bytes=%d", m.path, m.totalBytes)
	return errors.Join(flushErr, closeErr)
}

// Path returns the active log file path.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Index returns the sequence number of the active log file.
func (m *Manager) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Stats is a point-in-time copy of the manager's counters.
type Stats struct {
	BytesWritten uint64
	PendingBytes int
	DroppedBytes uint64
	Flushes      uint64
	FlushErrors  uint64
	Rotations    uint64
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		BytesWritten: m.totalBytes,
		PendingBytes: len(m.pending),
		DroppedBytes: m.droppedBytes,
		Flushes:      m.flushes,
		FlushErrors:  m.flushErrors,
		Rotations:    m.rotations,
	}
}
