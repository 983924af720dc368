package engine

import (
	"context"
	"time"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// AuditResolver supplies the acting user and clock for audit columns.
type AuditResolver interface {
	Resolve(ctx context.Context) (userID any, utcNow time.Time)
}

// AuditResolverFunc adapts a function to the AuditResolver interface.
type AuditResolverFunc func(ctx context.Context) (any, time.Time)

func (f AuditResolverFunc) Resolve(ctx context.Context) (any, time.Time) { return f(ctx) }

// auditSentinel is written to last-updated-by when no resolver is
// configured and the entity carries no prior value.
const auditSentinel = "system"

// prepareAudit applies the audit and version rules to an entity before any
// insert or upsert, and before an update's SET clause is computed. A table
// without audit columns makes this a no-op.
func (e *Engine) prepareAudit(ctx context.Context, t *metadata.Table, entity any, forInsert bool) error {
	now := time.Now().UTC()
	var userID any
	if e.audit != nil {
		userID, now = e.audit.Resolve(ctx)
		now = now.UTC()
	}

	for _, c := range t.Columns {
		switch {
		case c.UpdatedOn:
			if err := setTime(c, entity, now); err != nil {
				return err
			}

		case c.UpdatedBy:
			if c.NonUpdatable && !forInsert {
				continue // omitted so database defaults apply
			}
			if e.audit != nil {
				if err := c.Set(entity, userID); err != nil {
					return err
				}
				continue
			}
			// No resolver: keep an existing value, fall back to the
			// sentinel only when none exists.
			if c.IsZero(entity) {
				if err := c.Set(entity, auditSentinel); err != nil {
					return configErr(t.Name, "last-updated-by column %s cannot hold the default principal: %v", c.Name, err)
				}
			}

		case c.CreatedOn:
			if forInsert && c.IsZero(entity) {
				if err := setTime(c, entity, now); err != nil {
					return err
				}
			}

		case c.CreatedBy:
			if !forInsert || !c.IsZero(entity) {
				continue
			}
			if c.NonInsertable {
				continue // omitted so database defaults apply
			}
			if e.audit == nil {
				return configErr(t.Name, "created-by column %s requires an audit resolver", c.Name)
			}
			if err := c.Set(entity, userID); err != nil {
				return err
			}
		}
	}
	return nil
}

// prepareVersion defaults an unset, non-binary version column to 1 on the
// insert path.
func prepareVersion(t *metadata.Table, entity any) error {
	v := t.Version
	if v == nil || v.Tag == metadata.TagBinary || !v.IsZero(entity) {
		return nil
	}
	return v.Set(entity, int64(1))
}

func setTime(c *metadata.Column, entity any, now time.Time) error {
	return c.Set(entity, now)
}
