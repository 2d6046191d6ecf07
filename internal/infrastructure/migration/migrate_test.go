package migration

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"

	"punchclock/internal/app/server/config"
)

type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		DB: config.DB{DatabaseURI: "postgres://localhost/punchclock", Migrations: "migrations"},
	}
}

func engineFor(m Migrator) Engine {
	return func(string, string) (Migrator, error) { return m, nil }
}

func TestMigration_Up(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Version").Return(uint(1), false, nil)
	mockM.On("Close").Return(nil, nil)

	var gotSource, gotDB string
	engine := func(source, db string) (Migrator, error) {
		gotSource, gotDB = source, db
		return mockM, nil
	}

	err := NewMigration(testConfig(), engine, slog.Default()).Up()

	assert.NoError(t, err)
	assert.Equal(t, "file://migrations", gotSource)
	assert.Equal(t, "postgres://localhost/punchclock", gotDB)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		upErr      error
		version    uint
		dirty      bool
		versionErr error
		srcErr     error
		dbErr      error
		wantErr    error
		contains   []string
	}{
		{name: "no change", upErr: migrate.ErrNoChange, version: 1},
		{name: "empty directory", upErr: migrate.ErrNoChange, versionErr: migrate.ErrNilVersion},
		{name: "dirty schema", version: 1, dirty: true, wantErr: ErrDirty, contains: []string{"version 1"}},
		{name: "up fails", upErr: errors.New("syntax error at or near"), contains: []string{"migration up", "syntax error"}},
		{name: "version fails", versionErr: errors.New("relation missing"), contains: []string{"read schema version"}},
		{name: "close source fails", version: 1, srcErr: errors.New("source closed"), contains: []string{"source closed"}},
		{
			name:     "up and close fail",
			upErr:    errors.New("lock timeout"),
			dbErr:    errors.New("conn reset"),
			contains: []string{"lock timeout", "conn reset"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockM := new(MockMigrator)
			mockM.On("Up").Return(tt.upErr)
			mockM.On("Version").Return(tt.version, tt.dirty, tt.versionErr).Maybe()
			mockM.On("Close").Return(tt.srcErr, tt.dbErr)

			err := NewMigration(testConfig(), engineFor(mockM), slog.Default()).Up()

			if tt.wantErr == nil && len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestMigration_Up_EngineError(t *testing.T) {
	engine := func(string, string) (Migrator, error) {
		return nil, errors.New("unknown driver postgresql")
	}

	err := NewMigration(testConfig(), engine, slog.Default()).Up()

	assert.EqualError(t, err, "unknown driver postgresql")
}
