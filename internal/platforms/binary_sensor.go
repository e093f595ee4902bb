package platforms

import (
	"context"
	"sync"

	"github.com/tejusbharadwaj/energosync/internal/api"
	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/entity"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

// SubmissionClass reports whether the meter readings submission window of an account is open.
type SubmissionClass struct {
	Client api.Client
}

func (SubmissionClass) Token() entity.ClassToken  { return "submission" }
func (SubmissionClass) ConfigKey() string         { return "submission" }
func (SubmissionClass) DefaultNameFormat() string { return "{address} readings submission" }

func (c SubmissionClass) RefreshAccounts(
	ctx context.Context,
	index *entity.Index,
	account *models.Account,
	_ entity.Entry,
	accountConfig config.AccountConfig,
	sink entity.AddEntitiesFunc,
) error {
	build := func(string) (entity.Entity, error) {
		info, err := fetchAccountInfo(ctx, c.Client, account.Code)
		if err != nil {
			return nil, err
		}
		sensor := &SubmissionSensor{Base: entity.NewBase(c, c.Client, account, accountConfig)}
		sensor.set(info)
		return sensor, nil
	}
	return entity.Reconcile(ctx, index, []string{entity.Key(account.Code)}, build, rebind(account, accountConfig), sink, false)
}

type SubmissionSensor struct {
	entity.Base

	mu   sync.RWMutex
	info *models.AccountInfo
}

func (s *SubmissionSensor) set(info *models.AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

func (s *SubmissionSensor) snapshot() *models.AccountInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

func (s *SubmissionSensor) UpdateInternal(ctx context.Context) error {
	info, err := s.Client().AccountInfo(ctx, s.Account().Code)
	if err != nil {
		return err
	}
	s.set(info)
	return nil
}

func (s *SubmissionSensor) Code() string { return s.Account().Code }

func (s *SubmissionSensor) State() interface{} {
	if info := s.snapshot(); info != nil {
		return info.SubmissionOpen
	}
	return nil
}

func (s *SubmissionSensor) UniqueID() string { return uniqueID(&s.Base, s.Code()) }

func (s *SubmissionSensor) NameFormatValues() map[string]interface{} {
	return map[string]interface{}{"address": s.Account().Address}
}

func (s *SubmissionSensor) SensorRelatedAttributes() map[string]interface{} {
	info := s.snapshot()
	if info == nil {
		return nil
	}
	return map[string]interface{}{
		"submission_from": info.SubmissionFrom,
		"submission_to":   info.SubmissionTo,
	}
}

var (
	_ entity.Class  = SubmissionClass{}
	_ entity.Entity = (*SubmissionSensor)(nil)
)
