package service

import (
	"context"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const itemCountColumn = "item_count"

// countLedger collects per-category itemCount deltas for one category table
// and turns them into Increment ops. Nil category ids are ignored, and
// counts are never clamped.
type countLedger struct {
	table  string
	deltas map[uuid.UUID]int
	order  []uuid.UUID
}

func newCountLedger(table string) *countLedger {
	return &countLedger{table: table, deltas: map[uuid.UUID]int{}}
}

func (l *countLedger) add(categoryID uuid.UUID, delta int) {
	if categoryID == uuid.Nil || delta == 0 {
		return
	}
	if _, ok := l.deltas[categoryID]; !ok {
		l.order = append(l.order, categoryID)
	}
	l.deltas[categoryID] += delta
}

// pending is the number of Increment ops a flush would add.
func (l *countLedger) pending() int {
	n := 0
	for _, id := range l.order {
		if l.deltas[id] != 0 {
			n++
		}
	}
	return n
}

// flushInto appends the non-zero deltas to b and resets the ledger.
func (l *countLedger) flushInto(b *repository.Batch) {
	for _, id := range l.order {
		if d := l.deltas[id]; d != 0 {
			b.Increment(l.table, id, itemCountColumn, d)
		}
	}
	l.deltas = map[uuid.UUID]int{}
	l.order = nil
}

// ImportObserver receives progress of chunked writes. The prometheus
// collector implements it; nil means no observation.
type ImportObserver interface {
	BatchCommitted(kind string, writes int)
	ImportFinished(kind string, outcome string)
}

type noopObserver struct{}

func (noopObserver) BatchCommitted(string, int)    {}
func (noopObserver) ImportFinished(string, string) {}

// Import outcomes reported to ImportObserver.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// chunkWriter fills batches up to limit writes and commits each one before
// starting the next. Batches are not atomic with each other.
type chunkWriter struct {
	ctx       context.Context
	writer    repository.BatchWriter
	limit     int
	kind      string
	observer  ImportObserver
	cur       *repository.Batch
	committed int
}

func newChunkWriter(ctx context.Context, w repository.BatchWriter, limit int, kind string, obs ImportObserver) *chunkWriter {
	if limit <= 0 || limit > repository.MaxBatchWrites {
		limit = repository.MaxBatchWrites
	}
	if obs == nil {
		obs = noopObserver{}
	}
	return &chunkWriter{ctx: ctx, writer: w, limit: limit, kind: kind, observer: obs, cur: repository.NewBatch()}
}

// reserve commits the current batch first if n more writes would not fit.
func (w *chunkWriter) reserve(n int) error {
	if w.cur.Len() > 0 && w.cur.Len()+n > w.limit {
		return w.flush()
	}
	return nil
}

func (w *chunkWriter) batch() *repository.Batch { return w.cur }

func (w *chunkWriter) flush() error {
	n := w.cur.Len()
	if n == 0 {
		return nil
	}
	if err := w.writer.Commit(w.ctx, w.cur); err != nil {
		log.Error().Err(err).Str("kind", w.kind).Int("committed_batches", w.committed).Msg("batch commit failed")
		return err
	}
	w.committed++
	w.observer.BatchCommitted(w.kind, n)
	log.Debug().Str("kind", w.kind).Int("batch", w.committed).Int("writes", n).Msg("batch committed")
	w.cur = repository.NewBatch()
	return nil
}

// flushLedger writes the ledger's deltas in as many batches as needed.
func (w *chunkWriter) flushLedger(l *countLedger) error {
	for _, id := range l.order {
		d := l.deltas[id]
		if d == 0 {
			continue
		}
		if err := w.reserve(1); err != nil {
			return err
		}
		w.cur.Increment(l.table, id, itemCountColumn, d)
	}
	l.deltas = map[uuid.UUID]int{}
	l.order = nil
	return w.flush()
}

// fail classifies a commit failure: nothing written yet is a plain upstream
// error, anything else is a partial write.
func (w *chunkWriter) fail(op string, err error) error {
	if w.committed == 0 {
		w.observer.ImportFinished(w.kind, OutcomeFailed)
		return apierror.Upstream(op, err)
	}
	w.observer.ImportFinished(w.kind, OutcomePartial)
	return apierror.PartialImport(w.committed, err)
}

func (w *chunkWriter) done() {
	w.observer.ImportFinished(w.kind, OutcomeOK)
}
