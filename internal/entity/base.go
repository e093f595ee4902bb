package entity

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/energosync/internal/api"
	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/logger"
	"github.com/tejusbharadwaj/energosync/internal/models"
	"github.com/tejusbharadwaj/energosync/internal/poller"
)

const Manufacturer = "TNS Energo"

// DeviceInfo groups entities of one account under a single device on the host.
type DeviceInfo struct {
	Name         string      `json:"name"`
	Identifiers  [][2]string `json:"identifiers"`
	Manufacturer string      `json:"manufacturer"`
	Model        string      `json:"model"`
}

// Base carries the state shared by all entity instances. Concrete entities embed it.
type Base struct {
	class  Class
	client api.Client

	mu            sync.RWMutex
	account       *models.Account
	accountConfig config.AccountConfig
	platform      string
	entityID      string
	available     bool
	updater       *poller.Poller
}

func NewBase(class Class, client api.Client, account *models.Account, accountConfig config.AccountConfig) Base {
	return Base{
		class:         class,
		client:        client,
		account:       account,
		accountConfig: accountConfig,
		available:     true,
	}
}

func (b *Base) Core() *Base { return b }

func (b *Base) Class() Class { return b.class }

func (b *Base) ConfigKey() string { return b.class.ConfigKey() }

func (b *Base) Client() api.Client { return b.client }

func (b *Base) Account() *models.Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.account
}

func (b *Base) AccountConfig() config.AccountConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accountConfig
}

// SetAccount replaces the account snapshot and configuration after a refresh.
func (b *Base) SetAccount(account *models.Account, accountConfig config.AccountConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.account = account
	b.accountConfig = accountConfig
}

func (b *Base) classConfig() config.ClassConfig {
	cfg, _ := b.AccountConfig().Class(b.ConfigKey())
	return cfg
}

// ScanInterval is the polling interval configured for this entity's class.
func (b *Base) ScanInterval() time.Duration {
	if interval := b.classConfig().ScanInterval; interval > 0 {
		return interval
	}
	return config.DefaultScanInterval
}

// NameFormat is the configured name template, or the class default.
func (b *Base) NameFormat() string {
	if format := b.classConfig().NameFormat; format != "" {
		return format
	}
	return b.class.DefaultNameFormat()
}

func (b *Base) EntityIDPrefix() string {
	account := b.Account()
	return fmt.Sprintf("tns_%s_%s", account.API.Region, account.Code)
}

func (b *Base) APIHostname() string {
	parsed, err := url.Parse(b.Account().API.LKRegionURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func (b *Base) DeviceInfo() DeviceInfo {
	account := b.Account()
	return DeviceInfo{
		Name:         "№ " + account.Code,
		Identifiers:  [][2]string{{"tns_energo", account.API.Region + "__" + account.Code}},
		Manufacturer: Manufacturer,
		Model:        b.APIHostname(),
	}
}

func (b *Base) Platform() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.platform
}

func (b *Base) EntityID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entityID
}

func (b *Base) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available
}

func (b *Base) SetAvailable(available bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.available = available
}

// Logger returns a log entry scoped to this entity.
func (b *Base) Logger() *logrus.Entry {
	entityID := b.EntityID()
	if entityID == "" {
		entityID = "<no entity ID>"
	}
	logger.InitLogger()
	return logger.Log.WithFields(logrus.Fields{
		"class":     b.ConfigKey(),
		"entity_id": entityID,
	})
}

// Update runs the entity's UpdateInternal through automatic re-authentication.
func Update(ctx context.Context, e Entity) error {
	return api.CallWithAutoAuth(ctx, e.Core().client, e.UpdateInternal)
}

// AddedToHost moves the entity to Active: it binds the host identity and starts polling.
func (b *Base) AddedToHost(platform, entityID string, updater *poller.Poller) {
	b.mu.Lock()
	b.platform = platform
	b.entityID = entityID
	b.updater = updater
	b.mu.Unlock()

	b.Logger().Info("Adding to host")
	b.UpdaterRestart()
}

// WillRemoveFromHost moves the entity to Stopped.
func (b *Base) WillRemoveFromHost() {
	b.Logger().Info("Removing from host")
	b.UpdaterStop()
}

func (b *Base) poller() *poller.Poller {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updater
}

func (b *Base) UpdaterStop() {
	if p := b.poller(); p != nil {
		p.Stop()
	}
}

// UpdaterRestart rearms the poll timer with the currently configured scan interval.
func (b *Base) UpdaterRestart() {
	if p := b.poller(); p != nil {
		p.Start(b.ScanInterval())
	}
}

// UpdaterExecute forces an update outside the tick cycle and rearms the timer with the
// configured scan interval.
// Entities not yet added to the host have no updater and are left untouched.
func (b *Base) UpdaterExecute(ctx context.Context) {
	p := b.poller()
	if p == nil {
		return
	}
	p.ExecuteNow(ctx, b.ScanInterval())
}

func (b *Base) Polling() bool {
	p := b.poller()
	return p != nil && p.Running()
}
