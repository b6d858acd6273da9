package lockity

import "embed"

// EmailFS holds the html/plaintext template pairs used by internal/email.
//
//go:embed templates/emails
var EmailFS embed.FS
