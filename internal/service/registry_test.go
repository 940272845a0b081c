package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-platform/mind-analytics-api/internal/models"
)

func TestRegistryDefinitionsAreWellFormed(t *testing.T) {
	registry := NewRegistry(testEngineConfig())

	seen := make(map[string]bool)
	for _, def := range registry.All() {
		assert.False(t, seen[def.ID], "duplicate metric id %s", def.ID)
		seen[def.ID] = true

		assert.NotEmpty(t, def.Label, "%s has no label", def.ID)
		assert.NotNil(t, def.Compute, "%s has no compute function", def.ID)
		assert.NotEmpty(t, def.Roles, "%s has no visible roles", def.ID)
		assert.True(t, def.AllowsWindow(def.DefaultWindow), "%s default window not in allowed set", def.ID)
		assert.Greater(t, def.CacheTTL, time.Duration(0), "%s has no cache TTL", def.ID)

		switch def.Class {
		case models.ClassAccounts, models.ClassGrades, models.ClassTelemetry:
		default:
			t.Errorf("%s has unknown record class %q", def.ID, def.Class)
		}
	}
}

func TestRegistryTTLOverrides(t *testing.T) {
	cfg := testEngineConfig()
	cfg.CacheTTLOverrides = map[string]time.Duration{"telemetry.error_log": 30 * time.Second}
	registry := NewRegistry(cfg)

	errorLog, ok := registry.Lookup("telemetry.error_log")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, errorLog.CacheTTL)

	mean, ok := registry.Lookup("grades.overall_mean")
	require.True(t, ok)
	assert.Equal(t, cfg.DefaultCacheTTL, mean.CacheTTL)
}

func TestRegistryRoleVisibility(t *testing.T) {
	registry := NewRegistry(testEngineConfig())

	for _, def := range registry.All() {
		assert.True(t, def.VisibleTo(models.RoleAdmin), "admins see every metric, missing %s", def.ID)

		if def.Class == models.ClassTelemetry {
			assert.True(t, def.VisibleTo(models.RoleDeveloper), "developers see telemetry, missing %s", def.ID)
			assert.False(t, def.VisibleTo(models.RoleStudent), "students must not see telemetry metric %s", def.ID)
			assert.False(t, def.VisibleTo(models.RoleFaculty), "faculty must not see telemetry metric %s", def.ID)
		} else {
			assert.False(t, def.VisibleTo(models.RoleDeveloper), "developers must not see %s", def.ID)
			assert.True(t, def.VisibleTo(models.RoleFaculty), "faculty see academic metric %s", def.ID)
		}
	}

	_, ok := registry.Lookup("no.such.metric")
	assert.False(t, ok)
}
