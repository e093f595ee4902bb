package entity

import (
	"context"
	"errors"
	"fmt"
)

// Builder constructs the entity for a newly discovered key.
type Builder func(key string) (Entity, error)

// Refresher brings an existing entity up to date with a refresh cycle.
type Refresher func(ctx context.Context, existing Entity) error

// Reconcile implements the create-or-update half of RefreshAccounts: keys missing from
// index are built, stored and handed to sink in one batch; keys already present are
// passed to refresh. A failing key does not stop the others.
func Reconcile(
	ctx context.Context,
	index *Index,
	keys []string,
	build Builder,
	refresh Refresher,
	sink AddEntitiesFunc,
	updateBeforeAdd bool,
) error {
	var (
		added []Entity
		errs  []error
	)

	for _, key := range keys {
		if existing, ok := index.Get(key); ok {
			if refresh != nil {
				if err := refresh(ctx, existing); err != nil {
					errs = append(errs, fmt.Errorf("refresh %s: %w", key, err))
				}
			}
			continue
		}

		created, err := build(key)
		if err != nil {
			errs = append(errs, fmt.Errorf("build %s: %w", key, err))
			continue
		}
		if stored, inserted := index.PutIfAbsent(key, created); inserted {
			added = append(added, stored)
		}
	}

	if len(added) > 0 {
		sink(ctx, added, updateBeforeAdd)
	}

	return errors.Join(errs...)
}
