package services

import (
	"fmt"
	"net/http"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound           = gerrors.New("not found")
	ErrDataSourceNotFound = gerrors.New("unable to find that data source")
	ErrNoProcessor        = gerrors.New("no processor for report")
	ErrImportInProgress   = gerrors.New("import already in progress")
)

// ExpectedError marks a row that cannot be applied. The batch records it as
// rejected and keeps going.
type ExpectedError struct {
	Reason string
}

func (e *ExpectedError) Error() string { return e.Reason }

func expected(format string, args ...any) error {
	return &ExpectedError{Reason: fmt.Sprintf(format, args...)}
}

func AsExpected(err error) (*ExpectedError, bool) {
	var ee *ExpectedError
	if gerrors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func (e *ServiceError) HTTPStatus() int { return e.Status }

func (e *ServiceError) ErrorCode() string { return e.Code }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return gerrors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsExpected(err); ok {
		return err
	}
	if gerrors.Is(err, pgx.ErrNoRows) || gerrors.Is(err, ErrNotFound) {
		return newServiceError(http.StatusNotFound, "FIELDOPS_NOT_FOUND", "not found", err)
	}

	var pgErr *pgconn.PgError
	if !gerrors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		return newServiceError(http.StatusConflict, "FIELDOPS_DUPLICATE", "unique constraint violated", err)
	case "23P01": // exclusion_violation
		recordWriteConflict("overlap")
		if pgErr.ConstraintName == "Appointment_lifespan_no_overlap" {
			return newServiceError(http.StatusConflict, "FIELDOPS_LIFESPAN_OVERLAP", "appointment lifespans overlap", err)
		}
		return newServiceError(http.StatusConflict, "FIELDOPS_OVERLAP", "time window overlap", err)
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return newServiceError(http.StatusUnprocessableEntity, "FIELDOPS_REFERENCE_NOT_FOUND", "foreign key violation", err)
	case "23514": // check_violation
		return newServiceError(http.StatusUnprocessableEntity, "FIELDOPS_INVALID", "check constraint violated", err)
	default:
		return newServiceError(http.StatusInternalServerError, "FIELDOPS_INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
