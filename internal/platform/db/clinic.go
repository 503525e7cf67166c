package db

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ClinicIDKey contextKey = "clinic_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

// ClinicHeader lets a client address a specific clinic schema.
const ClinicHeader = "X-Clinic-ID"

var clinicIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,48}$`)

// SchemaName returns the Postgres schema holding a clinic's tables.
func SchemaName(clinicID string) string {
	return "clinic_" + clinicID
}

// ValidClinicID reports whether id may be used to build a schema name.
func ValidClinicID(id string) bool {
	return clinicIDPattern.MatchString(id)
}

// ClinicMiddleware pins one pooled connection to the request and points its
// search_path at the caller's clinic schema. Repositories pick the connection
// up through ConnFromContext.
func ClinicMiddleware(pool *pgxpool.Pool, defaultClinic string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clinicID := extractClinicID(c, defaultClinic)

			if !ValidClinicID(clinicID) {
				return echo.NewHTTPError(http.StatusBadRequest, "identifiant de clinique invalide")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "base de données indisponible")
			}
			defer conn.Release()

			_, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaName(clinicID)))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "résolution de la clinique impossible")
			}

			ctx = context.WithValue(ctx, ClinicIDKey, clinicID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("clinic_id", clinicID)

			return next(c)
		}
	}
}

func extractClinicID(c echo.Context, defaultClinic string) string {
	// 1. Claim set by the auth middleware
	if cid, ok := c.Get("jwt_clinic_id").(string); ok && cid != "" {
		return cid
	}

	// 2. Explicit header
	if cid := c.Request().Header.Get(ClinicHeader); cid != "" {
		return cid
	}

	return defaultClinic
}

// ConnFromContext retrieves the clinic-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// ClinicFromContext retrieves the clinic ID from context.
func ClinicFromContext(ctx context.Context) string {
	cid, _ := ctx.Value(ClinicIDKey).(string)
	return cid
}

// CreateClinicSchema creates the schema for a clinic and, when migrations is
// non-nil, brings it up to date.
func CreateClinicSchema(ctx context.Context, pool *pgxpool.Pool, clinicID string, migrations fs.FS) error {
	if !ValidClinicID(clinicID) {
		return fmt.Errorf("invalid clinic identifier: %s", clinicID)
	}

	schema := SchemaName(clinicID)
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrations != nil {
		migrator := NewMigrator(pool, migrations)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
