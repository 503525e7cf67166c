//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clinic/clinic/internal/domain/consultation"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/reporting"
	"github.com/clinic/clinic/migrations"
)

// globalPool is shared by every test and initialized once in TestMain.
var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pool, cleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func startPostgres(ctx context.Context) (*pgxpool.Pool, func(), error) {
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("clinictest"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("start container: %w", err)
	}
	terminate := func() { _ = ctr.Terminate(context.Background()) }

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("connection string: %w", err)
	}

	pool, err := db.NewPool(ctx, connStr, 10, 1)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	return pool, func() {
		pool.Close()
		terminate()
	}, nil
}

// newClinic creates a migrated and seeded clinic schema that is dropped when
// the test ends.
func newClinic(t *testing.T, ctx context.Context) string {
	t.Helper()
	clinicID := "it_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	if err := db.CreateClinicSchema(ctx, globalPool, clinicID, migrations.Schema); err != nil {
		t.Fatalf("create clinic schema: %v", err)
	}
	if _, err := db.Seed(ctx, globalPool, db.SchemaName(clinicID), migrations.SeedData); err != nil {
		t.Fatalf("seed clinic: %v", err)
	}

	t.Cleanup(func() {
		_, err := globalPool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+db.SchemaName(clinicID)+" CASCADE")
		if err != nil {
			t.Logf("warning: failed to drop schema for %s: %v", clinicID, err)
		}
	})
	return clinicID
}

// withClinicConn pins a connection to the clinic schema the same way the
// clinic middleware does for HTTP requests.
func withClinicConn(ctx context.Context, clinicID string, fn func(ctx context.Context) error) error {
	conn, err := globalPool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", db.SchemaName(clinicID))); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	ctx = context.WithValue(ctx, db.ClinicIDKey, clinicID)
	ctx = context.WithValue(ctx, db.DBConnKey, conn)
	return fn(ctx)
}

// services is the wiring used by cmd/clinic-server, minus HTTP.
type services struct {
	identity      *identity.Service
	scheduling    *scheduling.Service
	consultations *consultation.Service
	reporting     *reporting.Service
}

func newServices() *services {
	logger := zerolog.Nop()
	emitter := events.NewEmitter(events.NopPublisher{}, logger)

	patients := identity.NewPatientRepo(globalPool)
	doctors := identity.NewDoctorRepo(globalPool)
	resolver := identity.NewResolver(patients, doctors, nil, logger)
	classifier := consultation.NewClassifier(consultation.DefaultRules(
		[]string{"urgent", "urgence", "grave", "critique", "douleur", "saignement", "inconscient"},
		[]string{"suivi", "post-opératoire", "hospitalisation", "traitement urgence"},
	), nil)

	return &services{
		identity: identity.NewService(patients, identity.NewMedicalFileRepo(globalPool), doctors,
			identity.NewSpecialtyRepo(globalPool), db.NewTxRunner(globalPool), emitter, logger),
		scheduling:    scheduling.NewService(scheduling.NewAppointmentRepo(globalPool), resolver, emitter, 30, logger),
		consultations: consultation.NewService(consultation.NewConsultationRepo(globalPool), resolver, classifier, emitter, logger),
		reporting:     reporting.NewService(reporting.NewEvaluator(globalPool), 0, logger),
	}
}

func ptrStr(s string) *string { return &s }
