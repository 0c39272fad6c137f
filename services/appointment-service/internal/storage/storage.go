package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	SortStartAsc  = "startTime"
	SortStartDesc = "-startTime"
)

// Filter selects appointments of one tenant. From/To bound StartTime inclusively; zero means open.
type Filter struct {
	TenantID   string
	StaffID    string
	CustomerID string
	Status     model.Status
	From       time.Time
	To         time.Time
	Sort       string
	Limit      int
	Offset     int
}

func (f Filter) descending() bool {
	return f.Sort != SortStartAsc
}

func (f Filter) matches(a model.Appointment) bool {
	if a.TenantID != f.TenantID {
		return false
	}
	if f.StaffID != "" && a.StaffID != f.StaffID {
		return false
	}
	if f.CustomerID != "" && a.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && a.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.StartTime.After(f.To) {
		return false
	}
	return true
}

const (
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
)

// IsConflict reports a violation of the no-overlap exclusion constraint.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// Seed is the JSON document used to preload customers, staff and services.
type Seed struct {
	Customers []model.Customer `json:"customers"`
	Staff     []model.Staff    `json:"staff"`
	Services  []model.Service  `json:"services"`
}

func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	var s Seed
	if err := json.Unmarshal(raw, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return s, nil
}
