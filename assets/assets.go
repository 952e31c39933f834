// Package assets embeds the files shipped with the binaries: email templates, SQL migrations and the common passwords list.
package assets

import "embed"

//go:embed all:templates migrations common-passwords.txt
var FS embed.FS

const (
	EmailTemplatesDir   = "templates/email"
	MigrationsDir       = "migrations"
	CommonPasswordsFile = "common-passwords.txt"
)
