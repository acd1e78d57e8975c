package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/simaogato/capitalflow-backend/internal/domain"
	"gopkg.in/yaml.v2"
)

// Ledger is the part of the capital history service the seeder writes through
type Ledger interface {
	Now() time.Time
	History(ctx context.Context) ([]domain.CapitalSourceHistoryEntry, error)
	AddSource(ctx context.Context, input domain.NewCapitalSource, effectiveDate time.Time, notes string) (domain.SourceID, error)
}

// SourceSeed is one capital source in a seed file
type SourceSeed struct {
	Name           string `yaml:"name"`
	AnnualRate     string `yaml:"annual_rate"`
	AvailableCents int64  `yaml:"available_cents"`
	EffectiveDate  string `yaml:"effective_date,omitempty"` // RFC 3339 or YYYY-MM-DD; empty means now
	Notes          string `yaml:"notes,omitempty"`
}

// SeedFile is the YAML document read by LoadSeedFile
type SeedFile struct {
	Sources []SourceSeed `yaml:"sources"`
}

// LoadSeedFile reads and parses a YAML seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeedFile(data)
}

// ParseSeedFile parses a YAML seed document
func ParseSeedFile(data []byte) (*SeedFile, error) {
	var file SeedFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &file, nil
}

// CapitalSeeder populates an empty ledger with initial capital sources
type CapitalSeeder struct {
	ledger Ledger
	logger *slog.Logger
}

// NewCapitalSeeder creates a new CapitalSeeder instance
func NewCapitalSeeder(ledger Ledger, logger *slog.Logger) *CapitalSeeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapitalSeeder{
		ledger: ledger,
		logger: logger,
	}
}

type plannedSource struct {
	input         domain.NewCapitalSource
	effectiveDate time.Time
	notes         string
}

// Seed adds every seed as a new source, but only when the ledger has no entries yet.
// All seeds are validated before the first one is written.
// It returns the ids of the sources it added.
func (s *CapitalSeeder) Seed(ctx context.Context, seeds []SourceSeed) ([]domain.SourceID, error) {
	entries, err := s.ledger.History(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		s.logger.InfoContext(ctx, "capital ledger already populated, skipping seed", "entries", len(entries))
		return nil, nil
	}

	now := s.ledger.Now()
	planned := make([]plannedSource, 0, len(seeds))
	for i, seed := range seeds {
		p, err := plan(seed, now)
		if err != nil {
			return nil, fmt.Errorf("seed %d (%q): %w", i, seed.Name, err)
		}
		planned = append(planned, p)
	}

	ids := make([]domain.SourceID, 0, len(planned))
	for _, p := range planned {
		id, err := s.ledger.AddSource(ctx, p.input, p.effectiveDate, p.notes)
		if err != nil {
			return ids, fmt.Errorf("failed to seed %q: %w", p.input.Name, err)
		}
		ids = append(ids, id)
	}

	s.logger.InfoContext(ctx, "capital ledger seeded", "sources", len(ids))
	return ids, nil
}

func plan(seed SourceSeed, now time.Time) (plannedSource, error) {
	rate, err := domain.ParseRate(seed.AnnualRate)
	if err != nil {
		return plannedSource{}, err
	}

	input := domain.NewCapitalSource{
		Name:           seed.Name,
		AnnualRate:     rate,
		AvailableCents: domain.Cents(seed.AvailableCents),
	}
	if err := input.Validate(); err != nil {
		return plannedSource{}, err
	}

	effectiveDate := now
	if seed.EffectiveDate != "" {
		effectiveDate, err = parseSeedDate(seed.EffectiveDate)
		if err != nil {
			return plannedSource{}, err
		}
	}
	if effectiveDate.After(now) {
		return plannedSource{}, fmt.Errorf("%w: %s", domain.ErrFutureDate, seed.EffectiveDate)
	}

	return plannedSource{input: input, effectiveDate: effectiveDate, notes: seed.Notes}, nil
}

func parseSeedDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid effective_date %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
