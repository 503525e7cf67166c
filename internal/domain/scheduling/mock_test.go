package scheduling

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/events"
)

// directory stands in for the patient and doctor tables.
type directory struct {
	patients []identity.PersonName
	doctors  []identity.PersonName
}

func newDirectory() *directory {
	return &directory{
		patients: []identity.PersonName{
			{ID: 1, FirstName: "Mohammed", LastName: "Amrani"},
			{ID: 2, FirstName: "Amal", LastName: "Berrada"},
			{ID: 3, FirstName: "Youssef", LastName: "Chahid"},
		},
		doctors: []identity.PersonName{
			{ID: 1, FirstName: "Ahmed", LastName: "Bennani"},
			{ID: 2, FirstName: "Fatima", LastName: "Alami"},
		},
	}
}

func (d *directory) ResolvePatient(_ context.Context, name string) (int64, error) {
	p, err := identity.ResolvePerson(identity.NormalizeName(identity.RolePatient, name), identity.RolePatient, d.patients)
	return p.ID, err
}

func (d *directory) ResolveDoctor(_ context.Context, name string) (int64, error) {
	p, err := identity.ResolvePerson(identity.NormalizeName(identity.RoleDoctor, name), identity.RoleDoctor, d.doctors)
	return p.ID, err
}

func lookup(names []identity.PersonName, id int64) identity.PersonName {
	for _, n := range names {
		if n.ID == id {
			return n
		}
	}
	return identity.PersonName{}
}

type mockAppointmentRepo struct {
	dir    *directory
	store  map[int64]*Appointment
	nextID int64
	err    error
}

func newMockAppointmentRepo(dir *directory) *mockAppointmentRepo {
	return &mockAppointmentRepo{dir: dir, store: make(map[int64]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	a.ID = m.nextID
	stored := *a
	m.store[a.ID] = &stored
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id int64) (*Appointment, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	out := *a
	p := lookup(m.dir.patients, a.PatientID)
	d := lookup(m.dir.doctors, a.DoctorID)
	out.PatientFirstName, out.PatientLastName = p.FirstName, p.LastName
	out.DoctorFirstName, out.DoctorLastName = d.FirstName, d.LastName
	return &out, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.store[a.ID]; !ok {
		return identity.ErrNotFound
	}
	stored := *a
	m.store[a.ID] = &stored
	return nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.store[id]; !ok {
		return identity.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockAppointmentRepo) List(ctx context.Context, filter Filter, limit, offset int) ([]*Appointment, int, error) {
	var all []*Appointment
	for id := range m.store {
		a, _ := m.GetByID(ctx, id)
		if filter.PatientID > 0 && a.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID > 0 && a.DoctorID != filter.DoctorID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Search != "" {
			hay := strings.ToLower(strings.Join([]string{
				a.PatientFirstName, a.PatientLastName, a.DoctorFirstName, a.DoctorLastName}, "|"))
			if !strings.Contains(hay, strings.ToLower(filter.Search)) {
				continue
			}
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartsAt.Before(all[j].StartsAt) })
	return all, len(all), nil
}

type recordingPublisher struct {
	types []string
}

func (r *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	r.types = append(r.types, evt.Type)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

var errBoom = errors.New("boom")

type testEnv struct {
	repo *mockAppointmentRepo
	pub  *recordingPublisher
	svc  *Service
}

func newTestEnv() *testEnv {
	repo := newMockAppointmentRepo(newDirectory())
	pub := &recordingPublisher{}
	svc := NewService(repo, repo.dir, events.NewEmitter(pub, zerolog.Nop()), 30, zerolog.Nop())
	return &testEnv{repo: repo, pub: pub, svc: svc}
}

func strPtr(s string) *string { return &s }
