// Package orchestrator gates the first data refresh of a config entry until every
// supported sub-platform has registered, then fans out one refresh task per
// account and entity class.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/tejusbharadwaj/energosync/internal/api"
	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/entity"
	"github.com/tejusbharadwaj/energosync/internal/logger"
	"github.com/tejusbharadwaj/energosync/internal/models"
	"github.com/tejusbharadwaj/energosync/internal/registry"
)

// SupportedPlatforms must all register before the first refresh runs.
var SupportedPlatforms = []string{"sensor", "binary_sensor"}

var ErrUnsupportedPlatform = errors.New("platform is not supported by this entry")

const devSampleSize = 256

// CycleReport summarises one refresh cycle.
type CycleReport struct {
	ID        uuid.UUID
	Accounts  int
	Scheduled int
	Failed    int
	Duration  time.Duration
	// TaskErr joins the isolated task failures. It never aborts the cycle.
	TaskErr error
}

// RefreshObserver is notified after every refresh cycle, including failed ones.
type RefreshObserver func(report *CycleReport, err error)

// Entry is the runtime context of one integration instance. It owns the delegator
// registry, the entities table and the final configuration snapshot.
type Entry struct {
	ID       string
	Username string

	registry  *registry.Registry
	entities  *entity.Table
	client    api.Client
	logger    *logrus.Logger
	platforms []string

	mu        sync.RWMutex
	config    config.IntegrationConfig
	observers []RefreshObserver

	// (class, provider type) pairs already refreshed in dev presentation mode
	sampled *lru.Cache
}

type Option func(*Entry)

// WithPlatforms overrides the set of sub-platforms the refresh barrier waits for.
func WithPlatforms(platforms ...string) Option {
	return func(e *Entry) {
		e.platforms = platforms
	}
}

func WithLogger(log *logrus.Logger) Option {
	return func(e *Entry) {
		e.logger = log
	}
}

func NewEntry(id, username string, client api.Client, cfg config.IntegrationConfig, opts ...Option) (*Entry, error) {
	sampled, err := lru.New(devSampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dev sampling cache: %w", err)
	}

	logger.InitLogger()
	e := &Entry{
		ID:        id,
		Username:  username,
		entities:  entity.NewTable(),
		client:    client,
		logger:    logger.Log,
		platforms: SupportedPlatforms,
		config:    cfg,
		sampled:   sampled,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = registry.New(e.platforms...)

	return e, nil
}

func (e *Entry) Registry() *registry.Registry { return e.registry }

func (e *Entry) Entities() *entity.Table { return e.entities }

func (e *Entry) Client() api.Client { return e.client }

func (e *Entry) Logger() *logrus.Logger { return e.logger }

func (e *Entry) Config() config.IntegrationConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// SetConfig replaces the configuration snapshot used by subsequent refresh cycles.
func (e *Entry) SetConfig(cfg config.IntegrationConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = cfg
}

func (e *Entry) AddRefreshObserver(observer RefreshObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, observer)
}

func (e *Entry) log() *logrus.Entry {
	return e.logger.WithFields(logrus.Fields{
		"entry":    e.ID,
		"username": logger.Mask(e.Username),
	})
}

type registerOptions struct {
	refresh bool
}

type RegisterOption func(*registerOptions)

// WithoutRefresh registers the delegator without running the barrier check.
func WithoutRefresh() RegisterOption {
	return func(o *registerOptions) {
		o.refresh = false
	}
}

// RegisterUpdateDelegator records the sink and entity classes of a sub-platform.
// A duplicate registration for the same platform overwrites the previous one.
// When this registration completes the set of supported platforms, a full
// refresh runs before returning.
func (e *Entry) RegisterUpdateDelegator(
	ctx context.Context,
	platform string,
	sink entity.AddEntitiesFunc,
	classes []entity.Class,
	opts ...RegisterOption,
) error {
	if !slices.Contains(e.platforms, platform) {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	options := registerOptions{refresh: true}
	for _, opt := range opts {
		opt(&options)
	}

	ready := e.registry.Register(platform, sink, classes...)
	log := e.log().WithField("platform", platform)
	if !ready {
		log.WithField("missing", e.registry.Missing()).Debug("Delegator registered, waiting for other platforms")
		return nil
	}
	if !options.refresh {
		log.Debug("Delegator registered, refresh deferred")
		return nil
	}

	log.Debug("All platforms registered, running refresh")
	_, err := e.Refresh(ctx)
	return err
}

type task struct {
	account  *models.Account
	cfg      config.AccountConfig
	delegate registry.Delegator
	class    entity.Class
}

// Refresh pulls the account list and runs every eligible account x class refresh
// task concurrently, waiting for all of them. A failed account list fetch aborts the
// cycle; individual task failures are logged and do not affect their siblings.
func (e *Entry) Refresh(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{ID: uuid.New()}
	log := e.log().WithField("cycle", report.ID.String())

	delegators := e.registry.Delegators()
	if len(delegators) == 0 {
		log.Debug("No update delegators registered, nothing to refresh")
		return report, nil
	}

	start := time.Now()
	accounts, err := api.WithAutoAuth(ctx, e.client, e.client.Accounts)
	if err != nil {
		err = fmt.Errorf("failed to fetch accounts: %w", err)
		refreshCycles.WithLabelValues("failed").Inc()
		e.notify(nil, err)
		return nil, err
	}
	report.Accounts = len(accounts)

	cfg := e.Config()
	tasks := e.plan(log, cfg, accounts, delegators)
	report.Scheduled = len(tasks)
	if len(tasks) == 0 {
		log.Warn("No refresh tasks scheduled")
	}
	tasksScheduled.Add(float64(len(tasks)))

	p := pool.New().WithErrors()
	if cfg.MaxConcurrentTasks > 0 {
		p = p.WithMaxGoroutines(cfg.MaxConcurrentTasks)
	}

	var failed atomic.Int64
	entry := entity.Entry{ID: e.ID, Username: e.Username}
	for _, t := range tasks {
		p.Go(func() error {
			if err := e.run(ctx, entry, t); err != nil {
				failed.Add(1)
				tasksFailed.WithLabelValues(t.class.ConfigKey()).Inc()
				log.WithFields(logrus.Fields{
					"account":  logger.Mask(t.account.Code),
					"platform": t.delegate.Platform,
					"class":    t.class.ConfigKey(),
				}).WithError(err).Error("Refresh task failed")
				return err
			}
			return nil
		})
	}
	report.TaskErr = p.Wait()
	report.Failed = int(failed.Load())
	report.Duration = time.Since(start)

	cycleDuration.Observe(report.Duration.Seconds())
	refreshCycles.WithLabelValues("ok").Inc()
	log.WithFields(logrus.Fields{
		"accounts":  report.Accounts,
		"scheduled": report.Scheduled,
		"failed":    report.Failed,
		"duration":  report.Duration,
	}).Info("Refresh cycle completed")

	e.notify(report, nil)
	return report, nil
}

// plan expands accounts x platforms x classes into tasks, in that order.
func (e *Entry) plan(log *logrus.Entry, cfg config.IntegrationConfig, accounts []*models.Account, delegators []registry.Delegator) []task {
	var tasks []task
	for _, account := range accounts {
		accountLog := log.WithField("account", logger.Mask(account.Code))
		accountConfig := cfg.ForAccount(account.Code)
		if accountConfig.Skip {
			accountLog.Debug("Account is disabled in configuration, skipping")
			continue
		}

		for _, delegate := range delegators {
			for _, class := range delegate.Classes {
				classLog := accountLog.WithFields(logrus.Fields{
					"platform": delegate.Platform,
					"class":    class.ConfigKey(),
				})
				if _, enabled := accountConfig.Class(class.ConfigKey()); !enabled {
					classLog.Debug("Entity class is disabled for account, skipping")
					continue
				}
				if cfg.DevPresentation && e.alreadySampled(class, account) {
					classLog.Debug("Entity class already sampled for provider type, skipping")
					continue
				}
				tasks = append(tasks, task{
					account:  account,
					cfg:      accountConfig,
					delegate: delegate,
					class:    class,
				})
			}
		}
	}
	return tasks
}

func (e *Entry) alreadySampled(class entity.Class, account *models.Account) bool {
	key := fmt.Sprintf("%s/%d", class.Token(), account.ProviderType)
	seen, _ := e.sampled.ContainsOrAdd(key, struct{}{})
	return seen
}

func (e *Entry) run(ctx context.Context, entry entity.Entry, t task) (err error) {
	index := e.entities.Index(t.class.Token())
	recovered := panics.Try(func() {
		err = t.class.RefreshAccounts(ctx, index, t.account, entry, t.cfg, t.delegate.Sink)
	})
	if recovered != nil {
		return recovered.AsError()
	}
	return err
}

func (e *Entry) notify(report *CycleReport, err error) {
	e.mu.RLock()
	observers := slices.Clone(e.observers)
	e.mu.RUnlock()
	for _, observer := range observers {
		observer(report, err)
	}
}

// Unload stops polling of every live entity and empties the entities table.
func (e *Entry) Unload() {
	for _, ent := range e.entities.All() {
		ent.Core().WillRemoveFromHost()
		e.entities.Remove(ent)
	}
	e.log().Info("Config entry unloaded")
}
