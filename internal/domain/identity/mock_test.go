package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/events"
)

// mockStore backs every mock repository so fakeTx can snapshot and restore
// the whole record store.
type mockStore struct {
	patients    map[int64]*Patient
	files       map[int64]*MedicalFile
	doctors     map[int64]*Doctor
	specialties map[int64]*Specialty
	nextID      int64

	failFileCreate error
}

func newMockStore() *mockStore {
	return &mockStore{
		patients:    make(map[int64]*Patient),
		files:       make(map[int64]*MedicalFile),
		doctors:     make(map[int64]*Doctor),
		specialties: make(map[int64]*Specialty),
	}
}

func (s *mockStore) id() int64 {
	s.nextID++
	return s.nextID
}

type storeSnapshot struct {
	patients map[int64]Patient
	files    map[int64]MedicalFile
	nextID   int64
}

func (s *mockStore) snapshot() storeSnapshot {
	snap := storeSnapshot{patients: map[int64]Patient{}, files: map[int64]MedicalFile{}, nextID: s.nextID}
	for k, v := range s.patients {
		snap.patients[k] = *v
	}
	for k, v := range s.files {
		snap.files[k] = *v
	}
	return snap
}

func (s *mockStore) restore(snap storeSnapshot) {
	s.patients = make(map[int64]*Patient)
	for k, v := range snap.patients {
		p := v
		s.patients[k] = &p
	}
	s.files = make(map[int64]*MedicalFile)
	for k, v := range snap.files {
		f := v
		s.files[k] = &f
	}
	s.nextID = snap.nextID
}

// fakeTx discards every write made by fn when fn fails.
type fakeTx struct {
	store     *mockStore
	commits   int
	rollbacks int
}

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

// -- Patient --

type mockPatientRepo struct{ s *mockStore }

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.s.patients {
		if existing.FileNumber == p.FileNumber {
			return ErrDuplicate
		}
	}
	p.ID = m.s.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.MedicalFile = nil
	m.s.patients[p.ID] = &stored
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.s.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	if f, ok := m.s.files[id]; ok {
		fc := *f
		out.MedicalFile = &fc
	}
	return &out, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.s.patients[p.ID]; !ok {
		return ErrNotFound
	}
	stored := *p
	stored.MedicalFile = nil
	m.s.patients[p.ID] = &stored
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.s.patients[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.patients, id)
	delete(m.s.files, id)
	return nil
}

func (m *mockPatientRepo) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	var all []*Patient
	needle := strings.ToLower(search)
	for id := range m.s.patients {
		p, _ := m.GetByID(ctx, id)
		hay := strings.ToLower(p.LastName + "|" + p.FirstName + "|" + p.FileNumber)
		if needle == "" || strings.Contains(hay, needle) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockPatientRepo) NameCandidates(_ context.Context, _ string) ([]PersonName, error) {
	var out []PersonName
	for _, p := range m.s.patients {
		out = append(out, PersonName{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName})
	}
	return out, nil
}

func (m *mockPatientRepo) LastFileNumber(_ context.Context) (string, error) {
	var lastID int64
	last := ""
	for id, p := range m.s.patients {
		if id > lastID {
			lastID, last = id, p.FileNumber
		}
	}
	return last, nil
}

// -- Medical File --

type mockMedicalFileRepo struct{ s *mockStore }

func (m *mockMedicalFileRepo) Create(_ context.Context, f *MedicalFile) error {
	if m.s.failFileCreate != nil {
		return m.s.failFileCreate
	}
	if _, ok := m.s.files[f.PatientID]; ok {
		return ErrDuplicate
	}
	f.ID = m.s.id()
	f.UpdatedAt = time.Now()
	stored := *f
	m.s.files[f.PatientID] = &stored
	return nil
}

func (m *mockMedicalFileRepo) GetByPatient(_ context.Context, patientID int64) (*MedicalFile, error) {
	f, ok := m.s.files[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *f
	return &out, nil
}

func (m *mockMedicalFileRepo) Update(_ context.Context, f *MedicalFile) error {
	if _, ok := m.s.files[f.PatientID]; !ok {
		return ErrNotFound
	}
	stored := *f
	m.s.files[f.PatientID] = &stored
	return nil
}

// -- Doctor --

type mockDoctorRepo struct{ s *mockStore }

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	for _, existing := range m.s.doctors {
		if existing.LicenseNumber == d.LicenseNumber {
			return ErrDuplicate
		}
	}
	d.ID = m.s.id()
	stored := *d
	m.s.doctors[d.ID] = &stored
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id int64) (*Doctor, error) {
	d, ok := m.s.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *d
	out.DisplayName = DoctorDisplayName(out.FirstName, out.LastName)
	return &out, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	if _, ok := m.s.doctors[d.ID]; !ok {
		return ErrNotFound
	}
	stored := *d
	m.s.doctors[d.ID] = &stored
	return nil
}

func (m *mockDoctorRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.s.doctors[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.doctors, id)
	return nil
}

func (m *mockDoctorRepo) List(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	var all []*Doctor
	for id, d := range m.s.doctors {
		if filter.SpecialtyID > 0 && (d.SpecialtyID == nil || *d.SpecialtyID != filter.SpecialtyID) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(d.LastName+"|"+d.FirstName), strings.ToLower(filter.Search)) {
			continue
		}
		out, _ := m.GetByID(ctx, id)
		all = append(all, out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, len(all), nil
}

func (m *mockDoctorRepo) NameCandidates(_ context.Context, _ string) ([]PersonName, error) {
	var out []PersonName
	for _, d := range m.s.doctors {
		out = append(out, PersonName{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName})
	}
	return out, nil
}

// -- Specialty --

type mockSpecialtyRepo struct{ s *mockStore }

func (m *mockSpecialtyRepo) Create(_ context.Context, sp *Specialty) error {
	for _, existing := range m.s.specialties {
		if existing.Name == sp.Name {
			return ErrDuplicate
		}
	}
	sp.ID = m.s.id()
	stored := *sp
	m.s.specialties[sp.ID] = &stored
	return nil
}

func (m *mockSpecialtyRepo) GetByID(_ context.Context, id int64) (*Specialty, error) {
	sp, ok := m.s.specialties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sp, nil
}

func (m *mockSpecialtyRepo) List(_ context.Context) ([]*Specialty, error) {
	var out []*Specialty
	for _, sp := range m.s.specialties {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

var errBoom = errors.New("boom")

type testEnv struct {
	store *mockStore
	tx    *fakeTx
	pub   *recordingPublisher
	svc   *Service
}

func newTestEnv() *testEnv {
	store := newMockStore()
	tx := &fakeTx{store: store}
	pub := &recordingPublisher{}
	svc := NewService(
		&mockPatientRepo{s: store},
		&mockMedicalFileRepo{s: store},
		&mockDoctorRepo{s: store},
		&mockSpecialtyRepo{s: store},
		tx,
		events.NewEmitter(pub, zerolog.Nop()),
		zerolog.Nop(),
	)
	return &testEnv{store: store, tx: tx, pub: pub, svc: svc}
}

func newTestService() *Service {
	return newTestEnv().svc
}

func samplePatient(first, last string) *Patient {
	return &Patient{FirstName: first, LastName: last, BirthDate: "1985-03-15", Sex: "M"}
}
