package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tmakela/pitwall/internal/datastore"
)

func setupResolver(t *testing.T) (*Resolver, *datastore.DataStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&datastore.Driver{}, &datastore.Team{}))

	ds := &datastore.DataStore{DB: db}
	return NewResolver(ds), ds
}

func seedDriver(t *testing.T, ds *datastore.DataStore, fullName, number, abbr string) *datastore.Driver {
	t.Helper()

	driver := &datastore.Driver{
		FullName:     fullName,
		DriverNumber: number,
		Abbreviation: abbr,
	}
	if idx := lastSpace(fullName); idx > 0 {
		driver.FirstName = fullName[:idx]
		driver.LastName = fullName[idx+1:]
	}
	require.NoError(t, ds.CreateDriver(driver))
	return driver
}

func lastSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Max Verstappen", NormalizeName("  MAX VERSTAPPEN "))
	assert.Equal(t, "Max Verstappen", NormalizeName("max verstappen"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()
	r, ds := setupResolver(t)

	verstappen := seedDriver(t, ds, "Max Verstappen", "1", "VER")
	hamilton := seedDriver(t, ds, "Lewis Hamilton", "44", "HAM")

	// Exact name wins even when the number points elsewhere.
	driver, method, err := r.Resolve(context.Background(), Report{
		FullName:     "Max Verstappen",
		DriverNumber: "44",
	}, false)
	require.NoError(t, err)
	require.NotNil(t, driver)
	assert.Equal(t, verstappen.ID, driver.ID)
	assert.Equal(t, MethodExactName, method)

	// Unknown name falls through to the driver number.
	driver, method, err = r.Resolve(context.Background(), Report{
		FullName:     "L. Hamilton",
		DriverNumber: "44",
	}, false)
	require.NoError(t, err)
	require.NotNil(t, driver)
	assert.Equal(t, hamilton.ID, driver.ID)
	assert.Equal(t, MethodDriverNumber, method)

	// No name or number, abbreviation still matches.
	driver, method, err = r.Resolve(context.Background(), Report{Abbreviation: "HAM"}, false)
	require.NoError(t, err)
	require.NotNil(t, driver)
	assert.Equal(t, hamilton.ID, driver.ID)
	assert.Equal(t, MethodAbbreviation, method)
}

func TestResolveNormalizedName(t *testing.T) {
	t.Parallel()
	r, ds := setupResolver(t)

	alonso := seedDriver(t, ds, "Fernando Alonso", "", "")

	driver, method, err := r.Resolve(context.Background(), Report{
		FullName: "  FERNANDO ALONSO ",
	}, false)
	require.NoError(t, err)
	require.NotNil(t, driver)
	assert.Equal(t, alonso.ID, driver.ID)
	// The store's exact-name lookup is itself case-insensitive, so the
	// whitespace is what forces the normalized-name strategy here.
	assert.Equal(t, MethodNormalizedName, method)
}

func TestResolveUniqueLastName(t *testing.T) {
	t.Parallel()
	r, ds := setupResolver(t)

	sainz := seedDriver(t, ds, "Carlos Sainz", "55", "SAI")

	driver, method, err := r.Resolve(context.Background(), Report{
		FullName: "C. Sainz",
	}, false)
	require.NoError(t, err)
	require.NotNil(t, driver)
	assert.Equal(t, sainz.ID, driver.ID)
	assert.Equal(t, MethodUniqueLastName, method)
}

func TestResolveAmbiguousLastNameIsNoMatch(t *testing.T) {
	t.Parallel()
	r, ds := setupResolver(t)

	seedDriver(t, ds, "Mick Schumacher", "47", "MSC")
	seedDriver(t, ds, "Michael Schumacher", "", "")

	driver, method, err := r.Resolve(context.Background(), Report{
		FullName: "M. Schumacher",
	}, false)
	require.NoError(t, err)
	assert.Nil(t, driver, "two drivers share the surname, guessing would corrupt history")
	assert.Equal(t, MethodNoMatch, method)
}

func TestResolveCreatesWhenRequested(t *testing.T) {
	t.Parallel()
	r, ds := setupResolver(t)

	driver, method, err := r.Resolve(context.Background(), Report{
		FullName:     "Oscar Piastri",
		DriverNumber: "81",
		Abbreviation: "PIA",
	}, true)
	require.NoError(t, err)
	require.NotNil(t, driver)
	assert.Equal(t, MethodCreatedNew, method)
	assert.Equal(t, "Oscar", driver.FirstName)
	assert.Equal(t, "Piastri", driver.LastName)
	assert.Equal(t, "81", driver.DriverNumber)

	// The created driver is persisted and resolvable on the next call.
	again, method, err := r.Resolve(context.Background(), Report{FullName: "Oscar Piastri"}, false)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, driver.ID, again.ID)
	assert.Equal(t, MethodExactName, method)

	var count int64
	require.NoError(t, ds.DB.Model(&datastore.Driver{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveNoMatchWithoutCreate(t *testing.T) {
	t.Parallel()
	r, _ := setupResolver(t)

	driver, method, err := r.Resolve(context.Background(), Report{FullName: "Unknown Driver"}, false)
	require.NoError(t, err)
	assert.Nil(t, driver)
	assert.Equal(t, MethodNoMatch, method)
}

func TestUpdateIdentifiersBackfills(t *testing.T) {
	t.Parallel()
	r, ds := setupResolver(t)

	driver := seedDriver(t, ds, "Nico Hulkenberg", "", "")

	updated, err := r.UpdateIdentifiers(driver, Report{
		FullName:     "Nico Hülkenberg",
		DriverNumber: "27",
		Abbreviation: "HUL",
	})
	require.NoError(t, err)
	assert.True(t, updated)

	reloaded, err := ds.DriverByNumber("27")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, "HUL", reloaded.Abbreviation)
	// Canonical name wins over the reported variation.
	assert.Equal(t, "Nico Hulkenberg", reloaded.FullName)

	// Unchanged report is a no-op.
	updated, err = r.UpdateIdentifiers(reloaded, Report{DriverNumber: "27", Abbreviation: "HUL"})
	require.NoError(t, err)
	assert.False(t, updated)
}
