// Package filestore is the default, authoritative WAL implementation
// (SPEC_FULL.md §6): a local append-only JSON-lines segment file, replayed
// into an in-memory index on startup. This generalizes the teacher's
// storage.Store abstraction (pkg/storage/interface.go) — there backed by
// Postgres or an in-memory map for DID/session/nonce persistence — to a
// single-writer, crash-recoverable event log, matching the teacher's
// mutex-guarded single-writer convention used elsewhere (core/session.Manager).
package filestore

import (
	"bufio"
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/eventbus-fabric/eventbus/internal/wal"
)

// Config controls the file store's capacity and durability policy.
type Config struct {
	Path             string
	MaxBytes         int64 // default 200 MiB
	MaxRecords       int   // default 100_000
	FsyncEveryAppend bool  // default true
	// CompactEveryAppends rewrites the segment file to drop DELIVERED
	// records and superseded lines once this many lines have been appended
	// since the last compaction; DEAD_LETTER records are kept. 0 disables
	// automatic compaction.
	CompactEveryAppends int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:                path,
		MaxBytes:            200 * 1024 * 1024,
		MaxRecords:          100_000,
		FsyncEveryAppend:    true,
		CompactEveryAppends: 5000,
	}
}

// FileStore is the local segment-file-backed wal.Store.
type FileStore struct {
	mu  sync.Mutex
	cfg Config
	f   *os.File

	index        map[string]*wal.Record
	pendingOrder *list.List // elements are idempotency keys, FIFO
	pendingEls   map[string]*list.Element

	sizeBytes       int64
	appendsSinceGC  int
	droppedTotal    uint64
}

var _ wal.Store = (*FileStore)(nil)

// Open opens (creating if necessary) the segment file at cfg.Path, replays
// it to rebuild the in-memory index, and reverts any IN_FLIGHT records left
// over from a prior crash back to PENDING.
func Open(cfg Config) (*FileStore, error) {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig(cfg.Path).MaxBytes
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultConfig(cfg.Path).MaxRecords
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("wal/filestore: open %s: %w", cfg.Path, err)
	}

	fs := &FileStore{
		cfg:          cfg,
		f:            f,
		index:        make(map[string]*wal.Record),
		pendingOrder: list.New(),
		pendingEls:   make(map[string]*list.Element),
	}
	if err := fs.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) replay() error {
	if _, err := fs.f.Seek(0, 0); err != nil {
		return fmt.Errorf("wal/filestore: seek: %w", err)
	}
	scanner := bufio.NewScanner(fs.f)
	scanner.Buffer(make([]byte, 0, 64*1024), wal.MaxRecordLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r wal.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("wal/filestore: corrupt line in %s: %w", fs.cfg.Path, err)
		}
		rc := r
		fs.index[r.IdempotencyKey] = &rc
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("wal/filestore: scan %s: %w", fs.cfg.Path, err)
	}

	info, err := fs.f.Stat()
	if err != nil {
		return fmt.Errorf("wal/filestore: stat: %w", err)
	}
	fs.sizeBytes = info.Size()

	// Rebuild the pending FIFO in CreatedNS order, reverting any IN_FLIGHT
	// record orphaned by a crash back to PENDING (spec.md §4.4).
	ordered := make([]*wal.Record, 0, len(fs.index))
	reverted := 0
	for _, r := range fs.index {
		if r.State == wal.StateInFlight {
			r.State = wal.StatePending
			reverted++
		}
		if r.State == wal.StatePending {
			ordered = append(ordered, r)
		}
	}
	sortByCreated(ordered)
	for _, r := range ordered {
		el := fs.pendingOrder.PushBack(r.IdempotencyKey)
		fs.pendingEls[r.IdempotencyKey] = el
	}
	if reverted > 0 {
		return fs.appendTombstonesLocked(ordered)
	}
	return nil
}

// appendTombstonesLocked persists the PENDING state of records reverted
// from IN_FLIGHT during replay, so a second crash before any further
// activity still sees them as PENDING rather than IN_FLIGHT.
func (fs *FileStore) appendTombstonesLocked(records []*wal.Record) error {
	for _, r := range records {
		if err := fs.writeLineLocked(*r); err != nil {
			return err
		}
	}
	return nil
}

func sortByCreated(rs []*wal.Record) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].CreatedNS < rs[j-1].CreatedNS; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

func (fs *FileStore) writeLineLocked(r wal.Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("wal/filestore: marshal record %s: %w", r.IdempotencyKey, err)
	}
	b = append(b, '\n')
	n, err := fs.f.Write(b)
	if err != nil {
		return fmt.Errorf("wal/filestore: write: %w", err)
	}
	fs.sizeBytes += int64(n)
	if fs.cfg.FsyncEveryAppend {
		if err := fs.f.Sync(); err != nil {
			return fmt.Errorf("wal/filestore: fsync: %w", err)
		}
	}
	fs.appendsSinceGC++
	if fs.cfg.CompactEveryAppends > 0 && fs.appendsSinceGC >= fs.cfg.CompactEveryAppends {
		return fs.compactLocked()
	}
	return nil
}

// Append implements wal.Store.
func (fs *FileStore) Append(ctx context.Context, r wal.Record) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.index[r.IdempotencyKey]; exists {
		return false, nil
	}

	evicted := false
	if len(fs.pendingEls) >= fs.cfg.MaxRecords || fs.sizeBytes >= fs.cfg.MaxBytes {
		if err := fs.evictOldestPendingLocked(); err != nil {
			return false, err
		}
		evicted = true
	}

	r.State = wal.StatePending
	rc := r
	fs.index[r.IdempotencyKey] = &rc
	el := fs.pendingOrder.PushBack(r.IdempotencyKey)
	fs.pendingEls[r.IdempotencyKey] = el

	if err := fs.writeLineLocked(rc); err != nil {
		return evicted, err
	}
	return evicted, nil
}

func (fs *FileStore) evictOldestPendingLocked() error {
	front := fs.pendingOrder.Front()
	if front == nil {
		return nil // nothing pending to evict; let capacity grow
	}
	key := front.Value.(string)
	fs.pendingOrder.Remove(front)
	delete(fs.pendingEls, key)

	r := fs.index[key]
	r.State = wal.StateDeadLetter
	r.DeadLetterReason = "backlog_cap_exceeded"
	fs.droppedTotal++
	return fs.writeLineLocked(*r)
}

// Drain implements wal.Store.
func (fs *FileStore) Drain(ctx context.Context, batchSize int) ([]wal.Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]wal.Record, 0, batchSize)
	for len(out) < batchSize {
		front := fs.pendingOrder.Front()
		if front == nil {
			break
		}
		key := front.Value.(string)
		fs.pendingOrder.Remove(front)
		delete(fs.pendingEls, key)

		r := fs.index[key]
		r.State = wal.StateInFlight
		if err := fs.writeLineLocked(*r); err != nil {
			return out, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// MarkDelivered implements wal.Store.
func (fs *FileStore) MarkDelivered(ctx context.Context, keys []string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, key := range keys {
		r, ok := fs.index[key]
		if !ok {
			continue
		}
		r.State = wal.StateDelivered
		if err := fs.writeLineLocked(*r); err != nil {
			return err
		}
	}
	return nil
}

// MarkRetry implements wal.Store.
func (fs *FileStore) MarkRetry(ctx context.Context, keys []string, nowNS uint64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, key := range keys {
		r, ok := fs.index[key]
		if !ok {
			continue
		}
		r.State = wal.StatePending
		r.RetryCount++
		r.LastAttemptNS = nowNS
		if err := fs.writeLineLocked(*r); err != nil {
			return err
		}
		el := fs.pendingOrder.PushBack(key)
		fs.pendingEls[key] = el
	}
	return nil
}

// MarkInvalid implements wal.Store.
func (fs *FileStore) MarkInvalid(ctx context.Context, keys []string, reason string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, key := range keys {
		r, ok := fs.index[key]
		if !ok {
			continue
		}
		r.State = wal.StateDeadLetter
		r.DeadLetterReason = reason
		if err := fs.writeLineLocked(*r); err != nil {
			return err
		}
	}
	return nil
}

// RevertInFlight implements wal.Store. Replay already performs this
// reversion at Open time, so right after Open it finds nothing and returns
// 0; it only reverts records drained since Open.
func (fs *FileStore) RevertInFlight(ctx context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	count := 0
	for _, r := range fs.index {
		if r.State == wal.StateInFlight {
			r.State = wal.StatePending
			if err := fs.writeLineLocked(*r); err != nil {
				return count, err
			}
			el := fs.pendingOrder.PushBack(r.IdempotencyKey)
			fs.pendingEls[r.IdempotencyKey] = el
			count++
		}
	}
	return count, nil
}

// Stats implements wal.Store.
func (fs *FileStore) Stats(ctx context.Context) (wal.Stats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	inFlight, deadLetter := 0, 0
	for _, r := range fs.index {
		switch r.State {
		case wal.StateInFlight:
			inFlight++
		case wal.StateDeadLetter:
			deadLetter++
		}
	}
	return wal.Stats{
		Pending:      fs.pendingOrder.Len(),
		InFlight:     inFlight,
		DeadLetter:   deadLetter,
		SizeBytes:    fs.sizeBytes,
		DroppedTotal: fs.droppedTotal,
	}, nil
}

// compactLocked rewrites the segment file with exactly one line per
// currently-tracked record, dropping DELIVERED history entirely (DELIVERED
// records are pruned from the index too, per spec.md's "may be compacted").
// Caller must hold fs.mu.
func (fs *FileStore) compactLocked() error {
	tmpPath := fs.cfg.Path + ".compact.tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("wal/filestore: compact: open tmp: %w", err)
	}

	kept := make(map[string]*wal.Record, len(fs.index))
	var size int64
	w := bufio.NewWriter(tmp)
	for key, r := range fs.index {
		if r.State == wal.StateDelivered {
			continue // compacted away
		}
		b, err := json.Marshal(r)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("wal/filestore: compact: marshal: %w", err)
		}
		b = append(b, '\n')
		n, err := w.Write(b)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("wal/filestore: compact: write: %w", err)
		}
		size += int64(n)
		kept[key] = r
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("wal/filestore: compact: flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("wal/filestore: compact: sync: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, fs.cfg.Path); err != nil {
		return fmt.Errorf("wal/filestore: compact: rename: %w", err)
	}

	fs.f.Close()
	f, err := os.OpenFile(fs.cfg.Path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("wal/filestore: compact: reopen: %w", err)
	}
	fs.f = f
	fs.index = kept
	fs.sizeBytes = size
	fs.appendsSinceGC = 0
	return nil
}

// Close implements wal.Store.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.f.Close()
}
