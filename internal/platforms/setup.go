// Package platforms holds the concrete entity classes and registers them, one
// sub-platform at a time, with a config entry.
package platforms

import (
	"context"
	"fmt"

	"github.com/tejusbharadwaj/energosync/internal/api"
	"github.com/tejusbharadwaj/energosync/internal/entity"
	"github.com/tejusbharadwaj/energosync/internal/host"
	"github.com/tejusbharadwaj/energosync/internal/orchestrator"
)

const (
	Sensor       = "sensor"
	BinarySensor = "binary_sensor"
)

// Classes returns the entity classes hosted by a sub-platform, in refresh order.
func Classes(platform string, client api.Client) []entity.Class {
	switch platform {
	case Sensor:
		return []entity.Class{AccountClass{Client: client}, MeterClass{Client: client}, InvoiceClass{Client: client}}
	case BinarySensor:
		return []entity.Class{SubmissionClass{Client: client}}
	default:
		return nil
	}
}

// Setup registers the update delegator of one sub-platform. The registration that
// completes the supported set runs the first refresh.
func Setup(ctx context.Context, entry *orchestrator.Entry, hub *host.Hub, platform string, classes ...entity.Class) error {
	if len(classes) == 0 {
		classes = Classes(platform, entry.Client())
	}
	if err := entry.RegisterUpdateDelegator(ctx, platform, hub.Sink(platform), classes); err != nil {
		return fmt.Errorf("failed to set up %s platform: %w", platform, err)
	}
	return nil
}

// SetupAll sets up every supported sub-platform of the entry.
func SetupAll(ctx context.Context, entry *orchestrator.Entry, hub *host.Hub) error {
	for _, platform := range orchestrator.SupportedPlatforms {
		if err := Setup(ctx, entry, hub, platform); err != nil {
			return err
		}
	}
	return nil
}
