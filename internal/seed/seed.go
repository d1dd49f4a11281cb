// Package seed bootstraps a fresh installation with a starter profile.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jsvoboda/memorymap/internal/countries"
	"github.com/jsvoboda/memorymap/internal/store"
)

//go:embed seed.json
var seedJSON []byte

// Profile parses the bundled seed document. Country codes are upcased and
// validated against the country table; names and continents are filled in
// from it.
func Profile() (*store.Profile, error) {
	var profile store.Profile
	if err := json.Unmarshal(seedJSON, &profile); err != nil {
		return nil, fmt.Errorf("parse seed document: %w", err)
	}

	for i := range profile.Trips {
		t := &profile.Trips[i]
		t.CountryCode = strings.ToUpper(strings.TrimSpace(t.CountryCode))
		country, ok := countries.Lookup(t.CountryCode)
		if !ok {
			return nil, fmt.Errorf("seed document has unknown country code %q", t.CountryCode)
		}
		if t.Name == "" {
			t.Name = country.Name
		}
		if t.Continent == "" {
			t.Continent = country.Continent
		}
	}
	return &profile, nil
}

// Apply stores the seed profile when none exists yet. Returns true when the
// seed was written, false when an existing profile was left untouched.
func Apply(ctx context.Context, profiles store.ProfileRepository) (bool, error) {
	_, err := profiles.GetProfile(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("check existing profile: %w", err)
	}

	profile, err := Profile()
	if err != nil {
		return false, err
	}
	if err := profiles.SaveProfile(ctx, profile); err != nil {
		return false, fmt.Errorf("store seed profile: %w", err)
	}
	return true, nil
}
