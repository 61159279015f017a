// Package appfs embeds the static files shipped with the binaries: DB migrations, email templates and assets.
package appfs

import "embed"

//go:embed assets migrations all:templates
var FS embed.FS

const (
	CommonPasswordsFile = "assets/common-passwords.txt.gz"
	EmailTemplatesDir   = "templates/email"
	migrationsDir       = "migrations"
)

// MigrationsDir returns the migrations directory for the given DB engine.
func MigrationsDir(engine string) string {
	return migrationsDir + "/" + engine
}
