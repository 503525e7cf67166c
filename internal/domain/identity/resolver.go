package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// DoctorHonorific prefixes doctor display names and is stripped from
// submitted doctor names before lookup.
const DoctorHonorific = "Dr. "

// FullName is the display form of a person's name.
func FullName(first, last string) string {
	return first + " " + last
}

func DoctorDisplayName(first, last string) string {
	return DoctorHonorific + FullName(first, last)
}

// NormalizeName prepares submitted name text for lookup.
func NormalizeName(role Role, text string) string {
	text = strings.TrimSpace(text)
	if role == RoleDoctor {
		text = strings.TrimSpace(strings.TrimPrefix(text, DoctorHonorific))
	}
	return text
}

// Matches reports whether fullName equals "first last" or "last first"
// exactly, case included.
func (p PersonName) Matches(fullName string) bool {
	return FullName(p.FirstName, p.LastName) == fullName ||
		FullName(p.LastName, p.FirstName) == fullName
}

func matching(fullName string, candidates []PersonName) []PersonName {
	var out []PersonName
	for _, c := range candidates {
		if c.Matches(fullName) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolvePerson picks the record whose name matches fullName. When several
// records share the name the lowest id wins.
func ResolvePerson(fullName string, role Role, candidates []PersonName) (PersonName, error) {
	m := matching(fullName, candidates)
	if len(m) == 0 {
		return PersonName{}, &PersonNotFoundError{Role: role, Name: fullName}
	}
	return m[0], nil
}

// NameSource narrows the record store to plausible candidates for a name.
// Implementations may over-fetch; ResolvePerson has the final word.
type NameSource interface {
	NameCandidates(ctx context.Context, fullName string) ([]PersonName, error)
}

// ResolutionRecorder is satisfied by *telemetry.Provider.
type ResolutionRecorder interface {
	RecordResolution(role, outcome string)
}

// Resolver turns submitted patient and doctor names into record ids.
type Resolver struct {
	patients NameSource
	doctors  NameSource
	metrics  ResolutionRecorder
	logger   zerolog.Logger
}

func NewResolver(patients, doctors NameSource, metrics ResolutionRecorder, logger zerolog.Logger) *Resolver {
	return &Resolver{patients: patients, doctors: doctors, metrics: metrics, logger: logger}
}

func (r *Resolver) ResolvePatient(ctx context.Context, name string) (int64, error) {
	return r.resolve(ctx, RolePatient, r.patients, name)
}

func (r *Resolver) ResolveDoctor(ctx context.Context, name string) (int64, error) {
	return r.resolve(ctx, RoleDoctor, r.doctors, name)
}

func (r *Resolver) resolve(ctx context.Context, role Role, src NameSource, raw string) (int64, error) {
	name := NormalizeName(role, raw)
	if name == "" {
		r.record(role, "not_found")
		return 0, &PersonNotFoundError{Role: role}
	}

	candidates, err := src.NameCandidates(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("lookup %s %q: %w", role, name, err)
	}

	m := matching(name, candidates)
	switch len(m) {
	case 0:
		r.record(role, "not_found")
		r.logger.Debug().Str("role", string(role)).Str("name", name).Msg("name did not resolve")
		return 0, &PersonNotFoundError{Role: role, Name: name}
	case 1:
		r.record(role, "matched")
	default:
		r.record(role, "ambiguous")
		r.logger.Debug().Str("role", string(role)).Str("name", name).
			Int("matches", len(m)).Int64("picked", m[0].ID).Msg("name matched several records")
	}
	return m[0].ID, nil
}

func (r *Resolver) record(role Role, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordResolution(string(role), outcome)
	}
}
