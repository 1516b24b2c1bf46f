package journal

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/finex-ws/internal/metrics"
	"github.com/rickgao/finex-ws/internal/order"
)

// DB sends a batch of queued statements. *pgxpool.Pool satisfies it.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config configures a Writer.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // Queue limit; 0 means unbounded
}

// DefaultConfig returns defaults matching the config package.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// Stats are cumulative writer counters.
type Stats struct {
	Recorded  int64
	Dropped   int64
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

type row struct {
	ID            uuid.UUID
	Opcode        string
	Role          string
	CorrelationID *string
	OrderID       *string
	Account       *string
	Payload       string
	SentAt        int64 // unix micros
}

const insertSQL = `
	INSERT INTO outbound_commands (id, opcode, role, correlation_id, order_id, account, payload, sent_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`

// Writer journals commands in batches.
type Writer struct {
	cfg    Config
	db     DB
	queue  *Queue[order.Command]
	logger *slog.Logger

	batch   []row
	batchMu sync.Mutex
	stats   Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a Writer. Call Start to begin flushing.
func NewWriter(cfg Config, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	initial := 64
	if cfg.BufferSize > 0 && cfg.BufferSize < initial {
		initial = cfg.BufferSize
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		queue:  NewQueue[order.Command](initial, cfg.BufferSize),
		logger: logger,
		batch:  make([]row, 0, cfg.BatchSize),
		ctx:    context.Background(),
	}
}

// Record queues cmd without blocking.
func (w *Writer) Record(cmd order.Command) {
	if err := w.queue.Push(cmd); err != nil {
		w.batchMu.Lock()
		w.stats.Dropped++
		w.batchMu.Unlock()
		metrics.JournalRows.WithLabelValues("dropped").Inc()
		w.logger.Warn("journal dropped command", "opcode", cmd.Opcode, "error", err)
		return
	}

	w.batchMu.Lock()
	w.stats.Recorded++
	w.batchMu.Unlock()
}

// Start begins consuming queued commands and flushing them periodically.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the queue, flushes, and waits for the loops to exit or ctx to
// expire.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.queue.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Final flush runs on the caller's context since ours is cancelled.
	for _, cmd := range w.queue.Drain(0) {
		w.add(cmd)
	}
	w.flushWith(ctx)

	w.logger.Info("journal writer stopped")
	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// Pending returns the number of queued commands not yet batched.
func (w *Writer) Pending() int {
	return w.queue.Len()
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for w.ctx.Err() == nil {
		cmds := w.queue.Drain(w.cfg.BatchSize)
		if len(cmds) == 0 {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		full := false
		for _, cmd := range cmds {
			full = w.add(cmd) || full
		}
		if full {
			w.flushWith(w.ctx)
		}
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushWith(w.ctx)
		}
	}
}

// add batches cmd and reports whether the batch is full.
func (w *Writer) add(cmd order.Command) bool {
	r := toRow(cmd)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, r)
	return len(w.batch) >= w.cfg.BatchSize
}

func toRow(cmd order.Command) row {
	sentAt := cmd.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	payload := string(cmd.Payload)
	if payload == "" {
		payload = "null"
	}
	return row{
		ID:            rowID(cmd),
		Opcode:        cmd.Opcode,
		Role:          string(cmd.Role),
		CorrelationID: nullable(cmd.ID),
		OrderID:       nullable(cmd.OrderID),
		Account:       nullable(cmd.Account),
		Payload:       payload,
		SentAt:        sentAt.UnixMicro(),
	}
}

// rowID derives a stable id from the command so a replayed command hits
// ON CONFLICT instead of inserting a second row.
func rowID(cmd order.Command) uuid.UUID {
	var b strings.Builder
	for _, part := range []string{cmd.Opcode, string(cmd.Role), cmd.ID, cmd.OrderID} {
		b.WriteString(part)
		b.WriteByte(0)
	}
	b.Write(cmd.Payload)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String()))
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (w *Writer) flushWith(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]row, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("journal batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		metrics.JournalRows.WithLabelValues("error").Add(float64(len(batch)))
		return
	}

	inserted := len(batch) - conflicts
	w.batchMu.Lock()
	w.stats.Inserts += int64(inserted)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()
	metrics.JournalRows.WithLabelValues("inserted").Add(float64(inserted))
	metrics.JournalRows.WithLabelValues("conflict").Add(float64(conflicts))

	w.logger.Debug("flushed journal",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

func (w *Writer) batchInsert(ctx context.Context, rows []row) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertSQL, r.ID, r.Opcode, r.Role, r.CorrelationID, r.OrderID, r.Account, r.Payload, r.SentAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}
