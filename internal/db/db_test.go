package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "whatever")
	assert.ErrorContains(t, err, "unsupported db driver")
}

func TestMigrateCreatesTables(t *testing.T) {
	gdb := OpenTest(t)

	for _, m := range models.All() {
		assert.True(t, gdb.Migrator().HasTable(m), "missing table for %T", m)
	}
}

func TestApplicationPairIsUnique(t *testing.T) {
	gdb := OpenTest(t)

	client := models.User{Name: "Client", Email: "c@example.com", Password: "x", Role: models.RoleClient}
	provider := models.User{Name: "Provider", Email: "p@example.com", Password: "x", Role: models.RoleProvider}
	require.NoError(t, gdb.Create(&client).Error)
	require.NoError(t, gdb.Create(&provider).Error)

	job := models.Job{ClientID: client.ID, Title: "Fix roof"}
	require.NoError(t, gdb.Create(&job).Error)
	assert.Equal(t, models.JobOpen, job.Status)

	require.NoError(t, gdb.Create(&models.Application{JobID: job.ID, ProviderID: provider.ID}).Error)
	err := gdb.Create(&models.Application{JobID: job.ID, ProviderID: provider.ID}).Error
	assert.Error(t, err)
}
