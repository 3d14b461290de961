package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxBatchWrites is the per-batch write ceiling. Callers chunk below it.
const MaxBatchWrites = 500

var (
	ErrNotFound      = errors.New("record not found")
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d writes", MaxBatchWrites)
)

// OpKind is the kind of a single write in a Batch.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
	OpIncrement
)

// Op is one document write. Value is a pointer to a model for OpCreate;
// Updates maps column names to values for OpUpdate; Column and Delta drive
// OpIncrement.
type Op struct {
	Kind    OpKind
	Table   string
	ID      uuid.UUID
	Value   interface{}
	Updates map[string]interface{}
	Column  string
	Delta   int
}

// Batch accumulates writes that commit atomically: all apply or none do.
type Batch struct {
	ops []Op
}

func NewBatch() *Batch { return &Batch{} }

func (b *Batch) Create(table string, id uuid.UUID, value interface{}) {
	b.ops = append(b.ops, Op{Kind: OpCreate, Table: table, ID: id, Value: value})
}

func (b *Batch) Update(table string, id uuid.UUID, updates map[string]interface{}) {
	b.ops = append(b.ops, Op{Kind: OpUpdate, Table: table, ID: id, Updates: updates})
}

func (b *Batch) Delete(table string, id uuid.UUID) {
	b.ops = append(b.ops, Op{Kind: OpDelete, Table: table, ID: id})
}

// Increment adds delta to an integer column without reading it first.
func (b *Batch) Increment(table string, id uuid.UUID, column string, delta int) {
	b.ops = append(b.ops, Op{Kind: OpIncrement, Table: table, ID: id, Column: column, Delta: delta})
}

func (b *Batch) Len() int { return len(b.ops) }

// Ops returns the queued writes in order.
func (b *Batch) Ops() []Op { return b.ops }

// BatchWriter commits batches atomically.
type BatchWriter interface {
	Commit(ctx context.Context, b *Batch) error
}

type gormBatchWriter struct{ db *gorm.DB }

func NewBatchWriter(db *gorm.DB) BatchWriter { return &gormBatchWriter{db: db} }

// Commit runs every op of b inside one transaction.
func (w *gormBatchWriter) Commit(ctx context.Context, b *Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	if b.Len() > MaxBatchWrites {
		return ErrBatchTooLarge
	}
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, op := range b.ops {
			if err := applyOp(tx, op); err != nil {
				return fmt.Errorf("batch op %d (%s %s): %w", i, op.Kind, op.Table, err)
			}
		}
		return nil
	})
}

func applyOp(tx *gorm.DB, op Op) error {
	switch op.Kind {
	case OpCreate:
		return tx.Table(op.Table).Create(op.Value).Error
	case OpUpdate:
		return tx.Table(op.Table).Where("id = ?", op.ID).Updates(op.Updates).Error
	case OpDelete:
		return tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(op.Table)), op.ID).Error
	case OpIncrement:
		return tx.Table(op.Table).Where("id = ?", op.ID).
			UpdateColumn(op.Column, gorm.Expr(quoteIdent(op.Column)+" + ?", op.Delta)).Error
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpIncrement:
		return "increment"
	default:
		return "unknown"
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// translate maps gorm's not-found to ErrNotFound and wraps the rest.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
