// Package entity defines the capability contract every entity class implements to take
// part in refresh orchestration, and the shared base carried by entity instances.
//
// Entity lifecycle:
//
//	Constructed --AddedToHost--> Active (polling) --WillRemoveFromHost--> Stopped
//
// Forced refreshes and restarts keep the entity Active and only rearm its timer.
package entity

import (
	"context"

	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

// ClassToken identifies an entity class in the delegator registry and the entities table.
type ClassToken string

// AddEntitiesFunc hands newly discovered entities to the host platform.
type AddEntitiesFunc func(ctx context.Context, entities []Entity, updateBeforeAdd bool)

// Entry identifies the config entry a refresh runs for.
type Entry struct {
	ID       string
	Username string
}

// Class is the class-level half of the capability contract.
type Class interface {
	Token() ClassToken
	ConfigKey() string
	DefaultNameFormat() string

	// RefreshAccounts reconciles the live entities of one account against the API:
	// new data points are created and passed to sink, existing ones are updated in place.
	// Calling it twice with unchanged upstream data must not create duplicates.
	RefreshAccounts(
		ctx context.Context,
		index *Index,
		account *models.Account,
		entry Entry,
		accountConfig config.AccountConfig,
		sink AddEntitiesFunc,
	) error
}

// Entity is the instance-level half of the capability contract.
type Entity interface {
	Core() *Base

	// UpdateInternal re-fetches this entity's current value from the API.
	UpdateInternal(ctx context.Context) error

	Code() string
	// State returns the current value; nil means unknown.
	State() interface{}
	UniqueID() string
	NameFormatValues() map[string]interface{}
	SensorRelatedAttributes() map[string]interface{}
}
