package main

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/sources"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// classify attaches an exit code to an import failure that has none yet.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return err
	}
	var se *services.ServiceError
	var pgErr *pgconn.PgError
	var connectErr *pgconn.ConnectError
	switch {
	case errors.Is(err, services.ErrDataSourceNotFound),
		errors.Is(err, services.ErrNoProcessor),
		errors.Is(err, services.ErrImportInProgress),
		errors.Is(err, sources.ErrReportNotFound),
		errors.Is(err, sources.ErrCatalogNotFound):
		return withCode(exitValidation, err)
	case errors.As(err, &se), errors.As(err, &pgErr):
		return withCode(exitDBWrite, err)
	case errors.As(err, &connectErr):
		return withCode(exitDB, err)
	default:
		return err
	}
}
