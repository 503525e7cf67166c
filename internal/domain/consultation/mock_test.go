package consultation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/events"
)

type directory struct {
	patients []identity.PersonName
	doctors  []identity.PersonName
}

func newDirectory() *directory {
	return &directory{
		patients: []identity.PersonName{
			{ID: 1, FirstName: "Mohammed", LastName: "Amrani"},
			{ID: 2, FirstName: "Amal", LastName: "Berrada"},
		},
		doctors: []identity.PersonName{
			{ID: 1, FirstName: "Ahmed", LastName: "Bennani"},
			{ID: 3, FirstName: "Karim", LastName: "Tazi"},
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

type mockConsultationRepo struct {
	dir    *directory
	store  map[int64]*Consultation
	nextID int64
	err    error
}

func newMockConsultationRepo(dir *directory) *mockConsultationRepo {
	return &mockConsultationRepo{dir: dir, store: make(map[int64]*Consultation)}
}

func (m *mockConsultationRepo) Create(_ context.Context, c *Consultation) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	c.ID = m.nextID
	stored := *c
	m.store[c.ID] = &stored
	return nil
}

func (m *mockConsultationRepo) GetByID(_ context.Context, id int64) (*Consultation, error) {
	c, ok := m.store[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	out := *c
	p := lookup(m.dir.patients, c.PatientID)
	d := lookup(m.dir.doctors, c.DoctorID)
	out.PatientFirstName, out.PatientLastName = p.FirstName, p.LastName
	out.DoctorFirstName, out.DoctorLastName = d.FirstName, d.LastName
	return &out, nil
}

func (m *mockConsultationRepo) Update(_ context.Context, c *Consultation) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.store[c.ID]; !ok {
		return identity.ErrNotFound
	}
	stored := *c
	m.store[c.ID] = &stored
	return nil
}

func (m *mockConsultationRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.store[id]; !ok {
		return identity.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockConsultationRepo) List(ctx context.Context, filter Filter, limit, offset int) ([]*Consultation, int, error) {
	var all []*Consultation
	for id := range m.store {
		c, _ := m.GetByID(ctx, id)
		if filter.PatientID > 0 && c.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID > 0 && c.DoctorID != filter.DoctorID {
			continue
		}
		if filter.Search != "" {
			hay := strings.ToLower(strings.Join([]string{c.PatientFirstName, c.PatientLastName,
				c.DoctorFirstName, c.DoctorLastName, deref(c.Diagnosis), deref(c.Motive)}, "|"))
			if !strings.Contains(hay, strings.ToLower(filter.Search)) {
				continue
			}
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ConsultedAt.After(all[j].ConsultedAt) })
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

// fixedNow is 14:25:07 on an unrelated day.
var fixedNow = time.Date(2030, 6, 1, 14, 25, 7, 0, time.Local)

type testEnv struct {
	repo *mockConsultationRepo
	pub  *recordingPublisher
	svc  *Service
}

func newTestEnv() *testEnv {
	repo := newMockConsultationRepo(newDirectory())
	pub := &recordingPublisher{}
	svc := NewService(repo, repo.dir, newTestClassifier(), events.NewEmitter(pub, zerolog.Nop()), zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return &testEnv{repo: repo, pub: pub, svc: svc}
}
