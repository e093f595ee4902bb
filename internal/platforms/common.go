package platforms

import (
	"context"
	"fmt"

	"github.com/tejusbharadwaj/energosync/internal/api"
	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/entity"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

// uniqueID builds "<config_key>_<region>_<part>[_<part>...]".
func uniqueID(base *entity.Base, parts ...string) string {
	id := base.ConfigKey() + "_" + base.Account().API.Region
	for _, part := range parts {
		id += "_" + part
	}
	return id
}

// rebind moves an existing entity onto the latest account snapshot and forces an
// update when it is already live on the host.
func rebind(account *models.Account, accountConfig config.AccountConfig) entity.Refresher {
	return func(ctx context.Context, existing entity.Entity) error {
		base := existing.Core()
		base.SetAccount(account, accountConfig)
		base.UpdaterExecute(ctx)
		return nil
	}
}

func fetchAccountInfo(ctx context.Context, client api.Client, code string) (*models.AccountInfo, error) {
	info, err := api.WithAutoAuth(ctx, client, func(ctx context.Context) (*models.AccountInfo, error) {
		return client.AccountInfo(ctx, code)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account info: %w", err)
	}
	return info, nil
}
