package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/entity"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

type stubClass string

func (c stubClass) Token() entity.ClassToken  { return entity.ClassToken(c) }
func (c stubClass) ConfigKey() string         { return string(c) }
func (c stubClass) DefaultNameFormat() string { return "{code}" }
func (c stubClass) RefreshAccounts(context.Context, *entity.Index, *models.Account, entity.Entry, config.AccountConfig, entity.AddEntitiesFunc) error {
	return nil
}

func noopSink(context.Context, []entity.Entity, bool) {}

func TestRegisterBarrier(t *testing.T) {
	r := New("sensor", "binary_sensor", "button")

	assert.False(t, r.Register("sensor", noopSink, stubClass("a")))
	assert.Equal(t, []string{"binary_sensor", "button"}, r.Missing())
	assert.False(t, r.Register("button", noopSink, stubClass("b")))
	assert.False(t, r.Ready())
	assert.True(t, r.Register("binary_sensor", noopSink, stubClass("c")))
	assert.True(t, r.Ready())
	assert.Empty(t, r.Missing())
}

func TestRegisterOverwriteKeepsOrder(t *testing.T) {
	r := New("sensor", "binary_sensor")
	r.Register("sensor", noopSink, stubClass("a"))
	r.Register("binary_sensor", noopSink, stubClass("b"))
	r.Register("sensor", noopSink, stubClass("x"), stubClass("y"))

	delegators := r.Delegators()
	require.Len(t, delegators, 2)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "sensor", delegators[0].Platform)
	assert.Equal(t, []entity.Class{stubClass("x"), stubClass("y")}, delegators[0].Classes)
	assert.Equal(t, "binary_sensor", delegators[1].Platform)
}
