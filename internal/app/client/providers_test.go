package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchclock/internal/domain/geofence"
	"punchclock/internal/domain/verification"
)

func TestFixedLocation(t *testing.T) {
	_, err := FixedLocation{}.CurrentLocation(context.Background(), 0)
	assert.ErrorIs(t, err, errNoLocation)

	want := geofence.Location{Lat: 1, Lon: 2, AccuracyMeters: 3}
	got, err := FixedLocation{Location: &want}.CurrentLocation(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FixedLocation{Location: &want}.CurrentLocation(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFaceScript(t *testing.T) {
	s, err := ParseFaceScript("fail, ok")
	require.NoError(t, err)

	_, err = s.Capture(context.Background(), 0)
	assert.ErrorIs(t, err, errFaceMismatch)
	_, err = s.Capture(context.Background(), 0)
	assert.NoError(t, err)
	// последний результат повторяется
	_, err = s.Capture(context.Background(), 0)
	assert.NoError(t, err)
	assert.Equal(t, 3, s.Calls())

	s, err = ParseFaceScript("")
	require.NoError(t, err)
	_, err = s.Capture(context.Background(), 0)
	assert.NoError(t, err)

	s, err = ParseFaceScript("unavailable")
	require.NoError(t, err)
	_, err = s.Capture(context.Background(), 0)
	assert.ErrorIs(t, err, verification.ErrCapabilityUnavailable)

	_, err = ParseFaceScript("ok,maybe")
	assert.Error(t, err)
}

func TestStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	f, err := loadStateFile(path)
	require.NoError(t, err)
	assert.Empty(t, f.Get().DeviceID)

	id, err := f.DeviceID(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := f.DeviceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, f.Update(func(s *AppState) { s.Token = "tok" }))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := loadStateFile(path)
	require.NoError(t, err)
	assert.Equal(t, id, reloaded.Get().DeviceID)
	assert.Equal(t, "tok", reloaded.Get().Token)

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))
	_, err = loadStateFile(path)
	assert.Error(t, err)
}
