package platforms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tejusbharadwaj/energosync/internal/api"
	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/entity"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

// AccountClass exposes the balance of every account.
type AccountClass struct {
	Client api.Client
}

func (AccountClass) Token() entity.ClassToken  { return "account" }
func (AccountClass) ConfigKey() string         { return "accounts" }
func (AccountClass) DefaultNameFormat() string { return "{address} balance" }

func (c AccountClass) RefreshAccounts(
	ctx context.Context,
	index *entity.Index,
	account *models.Account,
	_ entity.Entry,
	accountConfig config.AccountConfig,
	sink entity.AddEntitiesFunc,
) error {
	build := func(string) (entity.Entity, error) {
		return &AccountSensor{Base: entity.NewBase(c, c.Client, account, accountConfig)}, nil
	}
	return entity.Reconcile(ctx, index, []string{entity.Key(account.Code)}, build, rebind(account, accountConfig), sink, true)
}

type AccountSensor struct {
	entity.Base

	mu   sync.RWMutex
	info *models.AccountInfo
}

func (s *AccountSensor) UpdateInternal(ctx context.Context) error {
	info, err := s.Client().AccountInfo(ctx, s.Account().Code)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
	return nil
}

func (s *AccountSensor) snapshot() *models.AccountInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

func (s *AccountSensor) Code() string { return s.Account().Code }

func (s *AccountSensor) State() interface{} {
	if info := s.snapshot(); info != nil {
		return info.Balance
	}
	return nil
}

func (s *AccountSensor) UniqueID() string { return uniqueID(&s.Base, s.Code()) }

func (s *AccountSensor) NameFormatValues() map[string]interface{} {
	values := map[string]interface{}{"address": s.Account().Address}
	if info := s.snapshot(); info != nil {
		values["tariff"] = info.Tariff
	}
	return values
}

func (s *AccountSensor) SensorRelatedAttributes() map[string]interface{} {
	attributes := map[string]interface{}{"address": s.Account().Address}
	if info := s.snapshot(); info != nil {
		attributes["tariff"] = info.Tariff
		attributes["updated_at"] = info.UpdatedAt.Format(time.RFC3339)
	}
	return attributes
}

// MeterClass exposes the latest reading of every meter of an account.
type MeterClass struct {
	Client api.Client
}

func (MeterClass) Token() entity.ClassToken  { return "meter" }
func (MeterClass) ConfigKey() string         { return "meters" }
func (MeterClass) DefaultNameFormat() string { return "Meter {code} ({model})" }

func (c MeterClass) RefreshAccounts(
	ctx context.Context,
	index *entity.Index,
	account *models.Account,
	_ entity.Entry,
	accountConfig config.AccountConfig,
	sink entity.AddEntitiesFunc,
) error {
	meters, err := api.WithAutoAuth(ctx, c.Client, func(ctx context.Context) ([]models.Meter, error) {
		return c.Client.Meters(ctx, account.Code)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch meters: %w", err)
	}

	byKey := make(map[string]models.Meter, len(meters))
	keys := make([]string, 0, len(meters))
	for _, meter := range meters {
		key := entity.Key(account.Code, meter.Code)
		byKey[key] = meter
		keys = append(keys, key)
	}

	build := func(key string) (entity.Entity, error) {
		sensor := &MeterSensor{Base: entity.NewBase(c, c.Client, account, accountConfig)}
		sensor.set(byKey[key])
		return sensor, nil
	}
	refresh := func(_ context.Context, existing entity.Entity) error {
		sensor, ok := existing.(*MeterSensor)
		if !ok {
			return fmt.Errorf("unexpected entity type %T", existing)
		}
		sensor.SetAccount(account, accountConfig)
		sensor.set(byKey[entity.Key(account.Code, sensor.Code())])
		return nil
	}
	return entity.Reconcile(ctx, index, keys, build, refresh, sink, false)
}

type MeterSensor struct {
	entity.Base

	mu    sync.RWMutex
	meter models.Meter
}

func (s *MeterSensor) set(meter models.Meter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meter = meter
}

func (s *MeterSensor) snapshot() models.Meter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meter
}

func (s *MeterSensor) UpdateInternal(ctx context.Context) error {
	meters, err := s.Client().Meters(ctx, s.Account().Code)
	if err != nil {
		return err
	}
	code := s.Code()
	for _, meter := range meters {
		if meter.Code == code {
			s.set(meter)
			return nil
		}
	}
	return fmt.Errorf("meter %s is no longer reported for account", code)
}

func (s *MeterSensor) Code() string { return s.snapshot().Code }

func (s *MeterSensor) State() interface{} {
	if reading := s.snapshot().LastReading; reading != nil {
		return reading.Value
	}
	return nil
}

func (s *MeterSensor) UniqueID() string { return uniqueID(&s.Base, s.Account().Code, s.Code()) }

func (s *MeterSensor) NameFormatValues() map[string]interface{} {
	meter := s.snapshot()
	return map[string]interface{}{
		"model": meter.Model,
		"zones": meter.Zones,
	}
}

func (s *MeterSensor) SensorRelatedAttributes() map[string]interface{} {
	meter := s.snapshot()
	attributes := map[string]interface{}{
		"meter_code": meter.Code,
		"model":      meter.Model,
		"zones":      meter.Zones,
	}
	if reading := meter.LastReading; reading != nil {
		attributes["zone"] = reading.Zone
		attributes["reading_time"] = reading.Time.Format(time.RFC3339)
	}
	return attributes
}

// InvoiceClass exposes the latest invoice of an account, once one is issued.
type InvoiceClass struct {
	Client api.Client
}

func (InvoiceClass) Token() entity.ClassToken  { return "invoice" }
func (InvoiceClass) ConfigKey() string         { return "invoices" }
func (InvoiceClass) DefaultNameFormat() string { return "Invoice {code}" }

func (c InvoiceClass) RefreshAccounts(
	ctx context.Context,
	index *entity.Index,
	account *models.Account,
	_ entity.Entry,
	accountConfig config.AccountConfig,
	sink entity.AddEntitiesFunc,
) error {
	invoice, err := api.WithAutoAuth(ctx, c.Client, func(ctx context.Context) (*models.Invoice, error) {
		return c.Client.LatestInvoice(ctx, account.Code)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch latest invoice: %w", err)
	}
	if invoice == nil {
		return nil
	}

	build := func(string) (entity.Entity, error) {
		sensor := &InvoiceSensor{Base: entity.NewBase(c, c.Client, account, accountConfig)}
		sensor.set(invoice)
		return sensor, nil
	}
	refresh := func(_ context.Context, existing entity.Entity) error {
		sensor, ok := existing.(*InvoiceSensor)
		if !ok {
			return fmt.Errorf("unexpected entity type %T", existing)
		}
		sensor.SetAccount(account, accountConfig)
		sensor.set(invoice)
		return nil
	}
	return entity.Reconcile(ctx, index, []string{entity.Key(account.Code)}, build, refresh, sink, false)
}

type InvoiceSensor struct {
	entity.Base

	mu      sync.RWMutex
	invoice *models.Invoice
}

func (s *InvoiceSensor) set(invoice *models.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoice = invoice
}

func (s *InvoiceSensor) snapshot() *models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invoice
}

func (s *InvoiceSensor) UpdateInternal(ctx context.Context) error {
	invoice, err := s.Client().LatestInvoice(ctx, s.Account().Code)
	if err != nil {
		return err
	}
	if invoice != nil {
		s.set(invoice)
	}
	return nil
}

func (s *InvoiceSensor) Code() string { return s.Account().Code }

func (s *InvoiceSensor) State() interface{} {
	if invoice := s.snapshot(); invoice != nil {
		return invoice.Total
	}
	return nil
}

func (s *InvoiceSensor) UniqueID() string { return uniqueID(&s.Base, s.Code()) }

func (s *InvoiceSensor) NameFormatValues() map[string]interface{} {
	values := map[string]interface{}{}
	if invoice := s.snapshot(); invoice != nil {
		values["period"] = invoice.Period.Format("2006-01")
	}
	return values
}

func (s *InvoiceSensor) SensorRelatedAttributes() map[string]interface{} {
	invoice := s.snapshot()
	if invoice == nil {
		return nil
	}
	return map[string]interface{}{
		"invoice_id": invoice.ID,
		"period":     invoice.Period.Format("2006-01"),
		"paid":       invoice.Paid,
		"due_date":   invoice.DueDate.Format(time.DateOnly),
	}
}

var (
	_ entity.Class  = AccountClass{}
	_ entity.Class  = MeterClass{}
	_ entity.Class  = InvoiceClass{}
	_ entity.Entity = (*AccountSensor)(nil)
	_ entity.Entity = (*MeterSensor)(nil)
	_ entity.Entity = (*InvoiceSensor)(nil)
)
