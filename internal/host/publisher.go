package host

import (
	"context"
	"errors"

	"github.com/tejusbharadwaj/energosync/internal/entity"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

// Discovery describes an entity to the host.
type Discovery struct {
	Platform string            `json:"platform"`
	UniqueID string            `json:"unique_id"`
	EntityID string            `json:"entity_id"`
	Name     string            `json:"name"`
	Device   entity.DeviceInfo `json:"device"`
}

// Publisher delivers entity lifecycle events to a host backend.
type Publisher interface {
	PublishDiscovery(ctx context.Context, d Discovery) error
	PublishState(ctx context.Context, d Discovery, state models.EntityState) error
	PublishRemoval(ctx context.Context, d Discovery) error
	Close() error
}

// MultiPublisher fans every event out to all publishers and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishDiscovery(ctx context.Context, d Discovery) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishDiscovery(ctx, d))
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) PublishState(ctx context.Context, d Discovery, state models.EntityState) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishState(ctx, d, state))
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) PublishRemoval(ctx context.Context, d Discovery) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishRemoval(ctx, d))
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

var _ Publisher = MultiPublisher(nil)
