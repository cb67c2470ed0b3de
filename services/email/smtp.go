package emailsvc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"

	gomail "github.com/go-mail/mail"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

type smtpService struct {
	dialer     *gomail.Dialer
	from       mail.Address
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*smtpService)(nil)

// NewSMTPService sends emails through the SMTP relay of conf.Email; STARTTLS is used when offered.
func NewSMTPService(conf *core.Config, logger core.Logger) core.EmailService {
	d := gomail.NewDialer(conf.Email.SMTPHost, conf.Email.SMTPPort, conf.Email.SMTPUser, conf.Email.SMTPPassword)
	d.TLSConfig = &tls.Config{ServerName: conf.Email.SMTPHost}
	return &smtpService{
		dialer:     d,
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc smtpService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.SendMessage(context.Background(), msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
			}
		}()
	}
}

func (svc smtpService) SendMessage(_ context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", svc.from.String())
	m.SetHeader("To", addressList(msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", addressList(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", addressList(msg.Bcc)...)
	}
	m.SetHeader("Subject", svc.subjPrefix+msg.Subject)

	m.SetBody("text/plain", msg.TextContent)
	if msg.HTMLContent != "" {
		m.AddAlternative("text/html", msg.HTMLContent)
	}

	if err := svc.dialer.DialAndSend(m); err != nil {
		return errors.Wrap(err, "sending email over smtp")
	}
	return nil
}

func addressList(addrs []mail.Address) []string {
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.String())
	}
	return list
}
