package entity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/models"
	"github.com/tejusbharadwaj/energosync/internal/poller"
)

type testClass struct{}

func (testClass) Token() ClassToken         { return "test" }
func (testClass) ConfigKey() string         { return "tests" }
func (testClass) DefaultNameFormat() string { return "Test {code} ({account_code})" }
func (testClass) RefreshAccounts(context.Context, *Index, *models.Account, Entry, config.AccountConfig, AddEntitiesFunc) error {
	return nil
}

type testEntity struct {
	Base
	code    string
	value   float64
	updates atomic.Int32
}

func (e *testEntity) UpdateInternal(context.Context) error {
	e.updates.Add(1)
	return nil
}
func (e *testEntity) Code() string       { return e.code }
func (e *testEntity) State() interface{} { return e.value }
func (e *testEntity) UniqueID() string   { return "tests_" + e.code }
func (e *testEntity) NameFormatValues() map[string]interface{} {
	return map[string]interface{}{"id": 42, "zone": "day"}
}
func (e *testEntity) SensorRelatedAttributes() map[string]interface{} {
	return map[string]interface{}{"account_id": "A-77", "zones": 2}
}

var testAccount = &models.Account{
	Code:         "1234567890",
	ProviderType: 1,
	API:          models.AccountAPI{Region: "msk", LKRegionURL: "https://msk.example.org/lk"},
}

func newTestEntity(code string, cfg config.AccountConfig) *testEntity {
	return &testEntity{Base: NewBase(testClass{}, nil, testAccount, cfg), code: code}
}

func TestFormatName(t *testing.T) {
	values := map[string]string{"code": "ab cd", "zone": "day"}

	tests := []struct {
		format string
		want   string
	}{
		{"{code}", "ab cd"},
		{"{code_upper}", "AB CD"},
		{"{code_cap}", "Ab cd"},
		{"{code_title}", "Ab Cd"},
		{"Meter {code} {zone}", "Meter ab cd day"},
		{"{missing}", "{{missing}}"},
		{"{missing_upper}", "{{missing_upper}}"},
		{"no placeholders", "no placeholders"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatName(tt.format, values))
		})
	}
}

func TestNameAndAttributes(t *testing.T) {
	e := newTestEntity("M-1", config.AccountConfig{})

	assert.Equal(t, "Test M-1 (1234567890)", Name(e))

	attrs := ExtraStateAttributes(e)
	assert.Equal(t, "Data provided by msk.example.org", attrs[AttrAttribution])
	assert.Equal(t, "1234567890", attrs[AttrAccountCode])
	assert.Equal(t, "A-77", attrs[AttrAccountID])
	assert.Equal(t, 2, attrs["zones"])
}

func TestDevPresentationMasking(t *testing.T) {
	var cfg config.AccountConfig
	cfg.SetClass("tests", config.ClassConfig{NameFormat: "{code} {account_code} {id}"})
	cfg.DevPresentation = true
	e := newTestEntity("M1", cfg)

	assert.Equal(t, "*# ########## #####", Name(e))

	attrs := ExtraStateAttributes(e)
	assert.Equal(t, "##########", attrs[AttrAccountCode])
	assert.Equal(t, "*-##", attrs[AttrAccountID])
}

func TestBaseConfigLookups(t *testing.T) {
	e := newTestEntity("M1", config.AccountConfig{})
	assert.Equal(t, config.DefaultScanInterval, e.ScanInterval())
	assert.Equal(t, "Test {code} ({account_code})", e.NameFormat())
	assert.Equal(t, "tns_msk_1234567890", e.EntityIDPrefix())

	device := e.DeviceInfo()
	assert.Equal(t, "№ 1234567890", device.Name)
	assert.Equal(t, [][2]string{{"tns_energo", "msk__1234567890"}}, device.Identifiers)
	assert.Equal(t, "msk.example.org", device.Model)

	var cfg config.AccountConfig
	cfg.SetClass("tests", config.ClassConfig{ScanInterval: 5 * time.Minute})
	e.SetAccount(testAccount, cfg)
	assert.Equal(t, 5*time.Minute, e.ScanInterval())
}

func TestReconcileIsIdempotent(t *testing.T) {
	index := NewIndex()
	var sunk [][]Entity
	sink := func(_ context.Context, entities []Entity, updateBeforeAdd bool) {
		assert.True(t, updateBeforeAdd)
		sunk = append(sunk, entities)
	}
	refreshed := 0
	build := func(key string) (Entity, error) {
		return newTestEntity(key, config.AccountConfig{}), nil
	}
	refresh := func(context.Context, Entity) error {
		refreshed++
		return nil
	}

	keys := []string{Key("1", "a"), Key("1", "b")}
	require.NoError(t, Reconcile(context.Background(), index, keys, build, refresh, sink, true))
	first := index.Entities()

	require.NoError(t, Reconcile(context.Background(), index, keys, build, refresh, sink, true))
	second := index.Entities()

	assert.Equal(t, 2, index.Len())
	require.Len(t, sunk, 1)
	assert.Len(t, sunk[0], 2)
	assert.Equal(t, 2, refreshed)
	for i := range first {
		assert.Same(t, first[i], second[i])
	}
}

func TestReconcileCollectsErrors(t *testing.T) {
	index := NewIndex()
	boom := errors.New("boom")
	added := 0
	sink := func(_ context.Context, entities []Entity, _ bool) { added += len(entities) }
	build := func(key string) (Entity, error) {
		if key == "bad" {
			return nil, boom
		}
		return newTestEntity(key, config.AccountConfig{}), nil
	}

	err := Reconcile(context.Background(), index, []string{"good", "bad"}, build, nil, sink, false)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, index.Len())
}

func TestTableRemove(t *testing.T) {
	table := NewTable()
	e := newTestEntity("M1", config.AccountConfig{})
	other := newTestEntity("M2", config.AccountConfig{})

	idx := table.Index(testClass{}.Token())
	assert.Same(t, idx, table.Index(testClass{}.Token()))
	idx.PutIfAbsent("k1", e)
	idx.PutIfAbsent("k2", other)

	_, inserted := idx.PutIfAbsent("k1", other)
	assert.False(t, inserted)

	assert.True(t, table.Remove(e))
	assert.False(t, table.Remove(e))
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []Entity{other}, table.All())
}

func TestLifecycle(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	clock := clockwork.NewFakeClock()

	var cfg config.AccountConfig
	cfg.SetClass("tests", config.ClassConfig{ScanInterval: time.Minute})
	e := newTestEntity("M1", cfg)

	updater := poller.New(clock, func(ctx context.Context) {
		_ = e.UpdateInternal(ctx)
	}, logrus.NewEntry(logger))

	assert.False(t, e.Polling())
	e.UpdaterExecute(context.Background())
	assert.Equal(t, int32(0), e.updates.Load())

	e.AddedToHost("sensor", "sensor.tns_msk_1234567890_m1", updater)
	assert.True(t, e.Polling())
	assert.Equal(t, "sensor", e.Platform())

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return e.updates.Load() == 1 }, time.Second, 5*time.Millisecond)

	e.UpdaterExecute(context.Background())
	assert.Equal(t, int32(2), e.updates.Load())
	assert.True(t, e.Polling())

	e.WillRemoveFromHost()
	assert.False(t, e.Polling())

	// a forced update always rearms the timer with the configured scan interval
	e.UpdaterExecute(context.Background())
	assert.Equal(t, int32(3), e.updates.Load())
	assert.True(t, e.Polling())
	assert.Equal(t, time.Minute, updater.Interval())

	e.WillRemoveFromHost()
	assert.False(t, e.Polling())
}
