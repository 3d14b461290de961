package service

import (
	"context"
	"errors"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/config"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"
)

// Schema is the storage shape items are read from or written to.
type Schema int

const (
	SchemaNormalized Schema = iota
	SchemaLegacy
)

func (s Schema) String() string {
	if s == SchemaLegacy {
		return config.SchemaLegacy
	}
	return config.SchemaNormalized
}

// schemaResolver decides which item schema a call uses. In auto mode any
// base item switches the whole read to the normalized path; unmigrated legacy
// rows are then hidden until the migration removes them.
type schemaResolver struct {
	items repository.ItemRepository
	mode  string
}

func (r schemaResolver) forRead(ctx context.Context) (Schema, error) {
	switch r.mode {
	case config.SchemaNormalized:
		return SchemaNormalized, nil
	case config.SchemaLegacy:
		return SchemaLegacy, nil
	}
	n, err := r.items.CountBaseItems(ctx)
	if err != nil {
		return SchemaLegacy, apierror.Upstream("detect item schema", err)
	}
	if n > 0 {
		return SchemaNormalized, nil
	}
	return SchemaLegacy, nil
}

// forWrite keeps new items next to the existing ones: legacy only while the
// store holds legacy rows and no base items.
func (r schemaResolver) forWrite(ctx context.Context) (Schema, error) {
	switch r.mode {
	case config.SchemaNormalized:
		return SchemaNormalized, nil
	case config.SchemaLegacy:
		return SchemaLegacy, nil
	}
	n, err := r.items.CountBaseItems(ctx)
	if err != nil {
		return SchemaNormalized, apierror.Upstream("detect item schema", err)
	}
	if n > 0 {
		return SchemaNormalized, nil
	}
	legacy, err := r.items.CountLegacy(ctx)
	if err != nil {
		return SchemaNormalized, apierror.Upstream("detect item schema", err)
	}
	if legacy > 0 {
		return SchemaLegacy, nil
	}
	return SchemaNormalized, nil
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }
