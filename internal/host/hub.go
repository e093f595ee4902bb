// Package host binds entities to the outside world: it is the entity sink handed to
// the orchestrator, runs the state-update pathway and publishes entity lifecycle
// events through MQTT discovery, Kafka and state history.
package host

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/tejusbharadwaj/energosync/internal/entity"
	"github.com/tejusbharadwaj/energosync/internal/models"
	"github.com/tejusbharadwaj/energosync/internal/poller"
)

const StateUnknown = "unknown"

var slugPattern = regexp.MustCompile(`[^a-z0-9_]+`)

// Hub is the host side of one config entry.
type Hub struct {
	entities  *entity.Table
	publisher Publisher
	clock     clockwork.Clock
	logger    *logrus.Logger
}

func NewHub(entities *entity.Table, publisher Publisher, clock clockwork.Clock, logger *logrus.Logger) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		entities:  entities,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// Sink returns the entity sink of a sub-platform. Added entities are optionally
// updated first, announced, and then start polling.
func (h *Hub) Sink(platform string) entity.AddEntitiesFunc {
	return func(ctx context.Context, entities []entity.Entity, updateBeforeAdd bool) {
		for _, e := range entities {
			h.add(ctx, platform, e, updateBeforeAdd)
		}
	}
}

func (h *Hub) add(ctx context.Context, platform string, e entity.Entity, updateBeforeAdd bool) {
	base := e.Core()
	if updateBeforeAdd {
		if err := entity.Update(ctx, e); err != nil {
			base.Logger().WithError(err).Warn("Initial update failed")
			base.SetAvailable(false)
		}
	}

	entityID := EntityID(platform, e)
	updater := poller.New(h.clock, func(ctx context.Context) {
		_ = h.UpdateState(ctx, e, true)
	}, base.Logger().WithField("entity_id", entityID))
	base.AddedToHost(platform, entityID, updater)

	if err := h.publisher.PublishDiscovery(ctx, h.discovery(e)); err != nil {
		base.Logger().WithError(err).Error("Failed to publish discovery")
	}
	h.publishState(ctx, e)
}

// UpdateState is the host state-update pathway. With forceRefresh the entity first
// re-fetches its value; a failure marks it unavailable and is returned after the
// state has been published.
func (h *Hub) UpdateState(ctx context.Context, e entity.Entity, forceRefresh bool) error {
	var err error
	if forceRefresh {
		err = entity.Update(ctx, e)
		if err != nil {
			e.Core().Logger().WithError(err).Warn("Update failed")
		}
		e.Core().SetAvailable(err == nil)
	}
	h.publishState(ctx, e)
	return err
}

// Remove stops the entity, drops it from the entities table and withdraws it from the host.
func (h *Hub) Remove(ctx context.Context, e entity.Entity) error {
	e.Core().WillRemoveFromHost()
	h.entities.Remove(e)
	if err := h.publisher.PublishRemoval(ctx, h.discovery(e)); err != nil {
		return fmt.Errorf("failed to publish removal of %s: %w", e.UniqueID(), err)
	}
	return nil
}

// RemoveAll withdraws every entity of the entry from the host.
func (h *Hub) RemoveAll(ctx context.Context) error {
	var firstErr error
	for _, e := range h.entities.All() {
		if err := h.Remove(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Unload stops polling and marks every entity unavailable without withdrawing its
// discovery, so the host keeps the entities across restarts. The entities table is
// left to the config entry.
func (h *Hub) Unload(ctx context.Context) error {
	var errs []error
	for _, e := range h.entities.All() {
		base := e.Core()
		base.WillRemoveFromHost()
		base.SetAvailable(false)
		if err := h.publisher.PublishState(ctx, h.discovery(e), Snapshot(h.clock, e)); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish unavailability of %s: %w", e.UniqueID(), err))
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) Close() error {
	return h.publisher.Close()
}

func (h *Hub) publishState(ctx context.Context, e entity.Entity) {
	if err := h.publisher.PublishState(ctx, h.discovery(e), Snapshot(h.clock, e)); err != nil {
		e.Core().Logger().WithError(err).Error("Failed to publish state")
	}
}

func (h *Hub) discovery(e entity.Entity) Discovery {
	base := e.Core()
	entityID := base.EntityID()
	if entityID == "" {
		entityID = EntityID(base.Platform(), e)
	}
	return Discovery{
		Platform: base.Platform(),
		UniqueID: e.UniqueID(),
		EntityID: entityID,
		Name:     entity.Name(e),
		Device:   base.DeviceInfo(),
	}
}

// EntityID derives "<platform>.<prefix>_<class>[_<code>]"; the code is omitted when
// it is the account code itself.
func EntityID(platform string, e entity.Entity) string {
	base := e.Core()
	parts := []string{base.EntityIDPrefix(), base.ConfigKey()}
	if code := e.Code(); code != "" && code != base.Account().Code {
		parts = append(parts, code)
	}
	objectID := slugPattern.ReplaceAllString(strings.ToLower(strings.Join(parts, "_")), "_")
	return platform + "." + strings.Trim(objectID, "_")
}

// Snapshot captures the current state of an entity.
func Snapshot(clock clockwork.Clock, e entity.Entity) models.EntityState {
	base := e.Core()
	state := models.EntityState{
		Time:        clock.Now().UTC(),
		UniqueID:    e.UniqueID(),
		EntityID:    base.EntityID(),
		Platform:    base.Platform(),
		AccountCode: base.Account().Code,
		State:       StateUnknown,
		Available:   base.Available(),
		Attributes:  entity.ExtraStateAttributes(e),
	}

	switch value := e.State().(type) {
	case nil:
	case bool:
		state.State = "off"
		if value {
			state.State = "on"
		}
	default:
		state.State = cast.ToString(value)
		if number, err := cast.ToFloat64E(value); err == nil {
			state.Value = &number
		}
	}
	return state
}
