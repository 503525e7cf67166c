// Package migrations embeds the per-clinic SQL schema and its seed data.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql seed/*.sql
var files embed.FS

// Schema holds the versioned schema migrations.
var Schema fs.FS = files

// SeedData holds the reference data loaded by `clinic-server seed`.
var SeedData fs.FS = mustSub(files, "seed")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
