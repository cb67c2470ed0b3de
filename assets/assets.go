// Package assets embeds the static files shipped with the binaries.
package assets

import "embed"

// FS holds the email templates and the common passwords list.
//
//go:embed templates common-passwords.txt.gz
var FS embed.FS

// CommonPasswordsFile is the gzipped, newline separated list of rejected passwords.
const CommonPasswordsFile = "common-passwords.txt.gz"
