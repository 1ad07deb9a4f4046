// Package identity reconciles externally reported competitor records with
// canonical driver entities. The same driver arrives with different
// completeness and formatting across provider endpoints (full legal name in
// session results, a three-letter code in lap rows), so resolution runs an
// ordered list of matching strategies and must never create a duplicate for
// the same person.
package identity

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tmakela/pitwall/internal/datastore"
	"github.com/tmakela/pitwall/internal/logging"
)

var (
	logger      *slog.Logger
	closeLogger func() error
)

func init() {
	logger, closeLogger = logging.ForService("identity")
}

// Close flushes the service log file.
func Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}

// Method identifies which strategy produced a resolution.
type Method string

const (
	MethodExactName      Method = "exact_name"
	MethodDriverNumber   Method = "driver_number"
	MethodAbbreviation   Method = "abbreviation"
	MethodNormalizedName Method = "normalized_name"
	MethodUniqueLastName Method = "unique_last_name"
	MethodCreatedNew     Method = "created_new"
	MethodNoMatch        Method = "no_match"
)

// Report is one externally reported competitor record.
type Report struct {
	FullName     string
	DriverNumber string
	Abbreviation string
}

// Store is the subset of datastore operations the resolver needs.
type Store interface {
	DriverByName(fullName string) (*datastore.Driver, error)
	DriverByNumber(number string) (*datastore.Driver, error)
	DriverByAbbreviation(abbr string) (*datastore.Driver, error)
	DriversByLastName(lastName string) ([]datastore.Driver, error)
	AllDrivers() ([]datastore.Driver, error)
	CreateDriver(driver *datastore.Driver) error
	SaveDriver(driver *datastore.Driver) error
}

var titleCaser = cases.Title(language.English)

// NormalizeName normalizes a driver name for comparison: trimmed and
// title-cased, so "max VERSTAPPEN " and "Max Verstappen" compare equal.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(name))
}

// strategy is one matching step. Strategies are tried in order; the first
// hit wins, so changing the slice order changes the precedence contract.
type strategy struct {
	method Method
	match  func(report Report) (*datastore.Driver, error)
}

// Resolver matches reported competitor records to canonical drivers.
type Resolver struct {
	store      Store
	strategies []strategy
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store) *Resolver {
	r := &Resolver{store: store}
	r.strategies = []strategy{
		{MethodExactName, r.matchExactName},
		{MethodDriverNumber, r.matchDriverNumber},
		{MethodAbbreviation, r.matchAbbreviation},
		{MethodNormalizedName, r.matchNormalizedName},
		{MethodUniqueLastName, r.matchUniqueLastName},
	}
	return r
}

// Resolve finds the canonical driver for a reported record. When no strategy
// matches and createMissing is set, a new driver is synthesized from the
// report. Returns (nil, MethodNoMatch, nil) when nothing matched and
// creation was not requested.
func (r *Resolver) Resolve(ctx context.Context, report Report, createMissing bool) (*datastore.Driver, Method, error) {
	if err := ctx.Err(); err != nil {
		return nil, MethodNoMatch, err
	}

	for _, s := range r.strategies {
		driver, err := s.match(report)
		if err != nil {
			return nil, MethodNoMatch, err
		}
		if driver != nil {
			if s.method != MethodExactName {
				logger.Info("driver matched",
					"method", string(s.method),
					"reported", report.FullName,
					"matched", driver.FullName)
			}
			return driver, s.method, nil
		}
	}

	if createMissing {
		driver, err := r.createFromReport(report)
		if err != nil {
			return nil, MethodNoMatch, err
		}
		logger.Warn("created new driver",
			"full_name", driver.FullName,
			"driver_number", driver.DriverNumber)
		return driver, MethodCreatedNew, nil
	}

	logger.Warn("no driver match",
		"full_name", report.FullName,
		"driver_number", report.DriverNumber,
		"abbreviation", report.Abbreviation)
	return nil, MethodNoMatch, nil
}

func (r *Resolver) matchExactName(report Report) (*datastore.Driver, error) {
	if report.FullName == "" {
		return nil, nil
	}
	return r.store.DriverByName(report.FullName)
}

func (r *Resolver) matchDriverNumber(report Report) (*datastore.Driver, error) {
	if report.DriverNumber == "" {
		return nil, nil
	}
	return r.store.DriverByNumber(report.DriverNumber)
}

func (r *Resolver) matchAbbreviation(report Report) (*datastore.Driver, error) {
	if report.Abbreviation == "" {
		return nil, nil
	}
	return r.store.DriverByAbbreviation(report.Abbreviation)
}

// matchNormalizedName compares normalized names against the whole roster.
// Linear scan, fine at roster scale of tens.
func (r *Resolver) matchNormalizedName(report Report) (*datastore.Driver, error) {
	normalized := NormalizeName(report.FullName)
	if normalized == "" {
		return nil, nil
	}
	drivers, err := r.store.AllDrivers()
	if err != nil {
		return nil, err
	}
	for i := range drivers {
		if NormalizeName(drivers[i].FullName) == normalized {
			return &drivers[i], nil
		}
	}
	return nil, nil
}

// matchUniqueLastName matches by surname only when exactly one driver shares
// it. Ambiguous surnames are treated as no match rather than guessing, to
// avoid silently corrupting a driver's history.
func (r *Resolver) matchUniqueLastName(report Report) (*datastore.Driver, error) {
	if !strings.Contains(report.FullName, " ") {
		return nil, nil
	}
	parts := strings.Fields(report.FullName)
	lastName := parts[len(parts)-1]

	matches, err := r.store.DriversByLastName(lastName)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 1:
		return &matches[0], nil
	case 0:
		return nil, nil
	default:
		logger.Warn("ambiguous surname match, treating as no match",
			"reported", report.FullName,
			"last_name", lastName,
			"candidates", len(matches))
		return nil, nil
	}
}

// createFromReport synthesizes a driver from a reported record: first token
// becomes the given name, the remainder the surname.
func (r *Resolver) createFromReport(report Report) (*datastore.Driver, error) {
	firstName := report.FullName
	lastName := ""
	if parts := strings.Fields(report.FullName); len(parts) > 1 {
		firstName = parts[0]
		lastName = strings.Join(parts[1:], " ")
	}

	driver := &datastore.Driver{
		FullName:     report.FullName,
		FirstName:    firstName,
		LastName:     lastName,
		DriverNumber: report.DriverNumber,
		Abbreviation: report.Abbreviation,
	}
	if err := r.store.CreateDriver(driver); err != nil {
		return nil, err
	}
	return driver, nil
}

// UpdateIdentifiers backfills a driver's provider identifiers when they are
// empty or have changed. A name variation between the canonical record and
// the freshly reported name is logged only; the canonical name always wins.
// Returns true when the driver was updated.
func (r *Resolver) UpdateIdentifiers(driver *datastore.Driver, report Report) (bool, error) {
	updated := false

	if report.DriverNumber != "" && driver.DriverNumber != report.DriverNumber {
		logger.Info("updating driver number",
			"full_name", driver.FullName,
			"old", driver.DriverNumber,
			"new", report.DriverNumber)
		driver.DriverNumber = report.DriverNumber
		updated = true
	}

	if report.Abbreviation != "" && driver.Abbreviation != report.Abbreviation {
		logger.Info("updating driver abbreviation",
			"full_name", driver.FullName,
			"old", driver.Abbreviation,
			"new", report.Abbreviation)
		driver.Abbreviation = report.Abbreviation
		updated = true
	}

	if report.FullName != "" && NormalizeName(driver.FullName) != NormalizeName(report.FullName) {
		logger.Info("name variation detected, keeping canonical name",
			"canonical", driver.FullName,
			"reported", report.FullName)
	}

	if updated {
		if err := r.store.SaveDriver(driver); err != nil {
			return false, err
		}
	}
	return updated, nil
}
