// Package emailsvc delivers core.EmailMessage through the backend selected in the config.
package emailsvc

import (
	"github.com/trezcool/ratiba/core"
)

// New returns the email service of conf.Email.Backend: sendgrid, smtp or console (the default).
func New(conf *core.Config, logger core.Logger) core.EmailService {
	switch conf.Email.Backend {
	case "sendgrid":
		return NewSendgridService(conf, logger)
	case "smtp":
		return NewSMTPService(conf, logger)
	default:
		return NewConsoleService(conf, logger)
	}
}
