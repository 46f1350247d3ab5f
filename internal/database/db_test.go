package database_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/database"
	"procurement/internal/database/dbtest"
	"procurement/internal/model"
)

func TestMigrate_CreatesEveryTable(t *testing.T) {
	db := dbtest.New(t)

	for _, m := range database.Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	assert.True(t, db.Migrator().HasTable("role_permissions"))
}

func TestBaseAssignsIDs(t *testing.T) {
	db := dbtest.New(t)

	dept := model.Department{Name: "Finance", Code: "FIN"}
	require.NoError(t, db.Create(&dept).Error)
	assert.NotEqual(t, uuid.Nil, dept.ID)

	var loaded model.Department
	require.NoError(t, db.First(&loaded, "id = ?", dept.ID).Error)
	assert.Equal(t, "FIN", loaded.Code)
}
