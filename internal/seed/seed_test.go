package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsvoboda/memorymap/internal/store"
	"github.com/jsvoboda/memorymap/internal/store/mock"
)

func TestProfile(t *testing.T) {
	profile, err := Profile()
	require.NoError(t, err)
	assert.NotEmpty(t, profile.Title)
	require.NotEmpty(t, profile.Trips)

	for _, trip := range profile.Trips {
		assert.Len(t, trip.CountryCode, 2)
		assert.NotEmpty(t, trip.Name, "name should be filled in for %s", trip.CountryCode)
		assert.NotEmpty(t, trip.Continent, "continent should be filled in for %s", trip.CountryCode)
	}
}

func TestApply_FreshInstall(t *testing.T) {
	profiles := mock.NewProfileRepo()

	applied, err := Apply(context.Background(), profiles)
	require.NoError(t, err)
	assert.True(t, applied, "seed should be applied on a fresh install")

	saved, err := profiles.GetProfile(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, saved.Trips)
}

func TestApply_ExistingProfileUntouched(t *testing.T) {
	profiles := mock.NewProfileRepo()
	existing := &store.Profile{
		Title: "Already Configured",
		Trips: []store.Trip{{CountryCode: "NO", Name: "Norway", Continent: "Europe"}},
	}
	require.NoError(t, profiles.SaveProfile(context.Background(), existing))

	applied, err := Apply(context.Background(), profiles)
	require.NoError(t, err)
	assert.False(t, applied, "existing profile should be left untouched")

	saved, err := profiles.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Already Configured", saved.Title)
	assert.Len(t, saved.Trips, 1)
}
