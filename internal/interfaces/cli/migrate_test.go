package cli

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioDockViz/internal/infrastructure/database/postgres"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
)

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) Up() error            { return m.Called().Error(0) }
func (m *mockMigrator) Down(steps int) error { return m.Called(steps).Error(0) }
func (m *mockMigrator) Force(v int) error    { return m.Called(v).Error(0) }
func (m *mockMigrator) Close() error         { return m.Called().Error(0) }
func (m *mockMigrator) Version() (postgres.MigrationStatus, error) {
	args := m.Called()
	return args.Get(0).(postgres.MigrationStatus), args.Error(1)
}

// useMigrator swaps openMigrator for the test and records the arguments it
// was opened with.
func useMigrator(t *testing.T, m schemaMigrator) *[2]string {
	t.Helper()
	opened := &[2]string{}
	prev := openMigrator
	openMigrator = func(dsn, dir string, _ logging.Logger) (schemaMigrator, error) {
		opened[0], opened[1] = dsn, dir
		return m, nil
	}
	t.Cleanup(func() { openMigrator = prev })
	return opened
}

func TestMigrate_Up(t *testing.T) {
	m := &mockMigrator{}
	m.On("Up").Return(nil).Once()
	m.On("Version").Return(postgres.MigrationStatus{Version: 3}, nil).Once()
	m.On("Close").Return(nil).Once()
	opened := useMigrator(t, m)

	out, _, err := execute(t, "migrate", "up", "--dsn", "postgres://u:p@db:5432/x?sslmode=disable", "--path", "/migrations", "-o", "json")
	require.NoError(t, err)
	m.AssertExpectations(t)
	assert.Equal(t, "postgres://u:p@db:5432/x?sslmode=disable", opened[0])
	assert.Equal(t, "/migrations", opened[1])

	var report migrationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, uint(3), report.Version)
	assert.Equal(t, "migrations applied", report.Action)
}

func TestMigrate_DownUsesConfigDSN(t *testing.T) {
	m := &mockMigrator{}
	m.On("Down", 2).Return(nil).Once()
	m.On("Version").Return(postgres.MigrationStatus{Version: 1}, nil).Once()
	m.On("Close").Return(nil).Once()
	opened := useMigrator(t, m)

	out, _, err := execute(t, "migrate", "down", "--steps", "2", "--path", "/migrations")
	require.NoError(t, err)
	m.AssertExpectations(t)
	assert.Contains(t, opened[0], "postgres://")
	assert.Contains(t, out, "rolled back 2 step(s)")
	assert.Contains(t, out, "Schema version: 1")
}

func TestMigrate_VersionDirty(t *testing.T) {
	m := &mockMigrator{}
	m.On("Version").Return(postgres.MigrationStatus{Version: 4, Dirty: true}, nil).Once()
	m.On("Close").Return(nil).Once()
	useMigrator(t, m)

	out, _, err := execute(t, "migrate", "version", "--path", "/migrations")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 4")
	assert.Contains(t, out, "dirty")
}

func TestMigrate_Force(t *testing.T) {
	m := &mockMigrator{}
	m.On("Force", 5).Return(nil).Once()
	m.On("Version").Return(postgres.MigrationStatus{Version: 5}, nil).Once()
	m.On("Close").Return(nil).Once()
	useMigrator(t, m)

	_, _, err := execute(t, "migrate", "force", "5", "--path", "/migrations")
	require.NoError(t, err)
	m.AssertExpectations(t)

	_, _, err = execute(t, "migrate", "force", "five", "--path", "/migrations")
	assert.Error(t, err)
}

func TestMigrate_UpFailureStillCloses(t *testing.T) {
	m := &mockMigrator{}
	m.On("Up").Return(fmt.Errorf("dirty database version 2")).Once()
	m.On("Close").Return(nil).Once()
	useMigrator(t, m)

	_, _, err := execute(t, "migrate", "up", "--path", "/migrations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty database")
	m.AssertExpectations(t)
}
