package migrations

import (
	"context"
	"database/sql"
	"embed"

	gerrors "github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
)

//go:embed fieldops/*.sql
var FS embed.FS

const Dir = "fieldops"

func setup() error {
	goose.SetBaseFS(FS)
	return goose.SetDialect("postgres")
}

func Up(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return gerrors.Wrap(goose.UpContext(ctx, db, Dir), "goose up")
}

func Down(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return gerrors.Wrap(goose.DownContext(ctx, db, Dir), "goose down")
}

func Status(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return gerrors.Wrap(goose.StatusContext(ctx, db, Dir), "goose status")
}
