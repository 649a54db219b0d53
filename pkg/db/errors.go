package db

import (
	"errors"

	"dreambot/pkg/alerts"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var (
	// ErrNotFound is shared with the alert engine so both sides match the same sentinel.
	ErrNotFound      = alerts.ErrNotFound
	ErrStale         = alerts.ErrStale
	ErrConflict      = errors.New("db: already exists")
	ErrGroupFull     = errors.New("db: group is full")
	ErrTooManyAlerts = errors.New("db: too many alerts")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
