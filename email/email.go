package email

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/topea/contact-backend/models"
	"github.com/topea/contact-backend/sanitize"
	"github.com/topea/contact-backend/util"
	"github.com/topea/contact-backend/validator"
)

// Config stores everything needed to build and submit the two
// messages a contact submission produces.
type Config struct {
	auth               smtp.Auth
	username           string
	password           string
	submissionHostname string
	port               string
	sender             string
	contactAddress     string // operator inbox for notifications
	transport          enmime.Sender
}

// MakeConfigFromEnv initializes our email config object with
// environment variables.
func MakeConfigFromEnv() (Config, error) {
	// create config
	varErrs := util.Errors{}
	c := Config{
		username:           util.RequireEnv("SMTP_USERNAME", &varErrs),
		password:           util.RequireEnv("SMTP_PASSWORD", &varErrs),
		submissionHostname: util.RequireEnv("SMTP_ENDPOINT", &varErrs),
		port:               util.RequireEnv("SMTP_PORT", &varErrs),
		sender:             util.RequireEnv("SMTP_FROM_ADDRESS", &varErrs),
		contactAddress:     util.RequireEnv("CONTACT_ADDRESS", &varErrs),
	}
	if len(varErrs) > 0 {
		return c, varErrs
	}
	log.Printf("Establishing auth connection with SMTP server %s", c.submissionHostname)
	// create auth
	client, err := smtp.Dial(fmt.Sprintf("%s:%s", c.submissionHostname, c.port))
	if err != nil {
		return c, err
	}
	defer client.Close()
	err = client.StartTLS(&tls.Config{ServerName: c.submissionHostname})
	if err != nil {
		return c, fmt.Errorf("SMTP server doesn't support STARTTLS")
	}
	ok, auths := client.Extension("AUTH")
	if !ok {
		return c, fmt.Errorf("remote SMTP server doesn't support any authentication mechanisms")
	}
	if strings.Contains(auths, "PLAIN") {
		c.auth = smtp.PlainAuth("", c.username, c.password, c.submissionHostname)
	} else if strings.Contains(auths, "CRAM-MD5") {
		c.auth = smtp.CRAMMD5Auth(c.username, c.password)
	} else {
		return c, fmt.Errorf("SMTP server doesn't support PLAIN or CRAM-MD5 authentication")
	}
	c.transport = smtpSender{
		addr: fmt.Sprintf("%s:%s", c.submissionHostname, c.port),
		auth: c.auth,
	}
	return c, nil
}

// smtpSender submits built messages over SMTP. It satisfies
// enmime.Sender so MailBuilder.Send can use it directly.
type smtpSender struct {
	addr string
	auth smtp.Auth
}

func (s smtpSender) Send(reverseAddr string, recipients []string, msg []byte) error {
	if s.addr == "" {
		log.Println("Warning: email host not configured, not sending email")
		log.Println(string(msg))
		return nil
	}
	return smtp.SendMail(s.addr, s.auth, reverseAddr, recipients, msg)
}

// SendSubmission builds and sends the operator notification and the
// submitter auto-reply, in that order. Either transport failure is
// returned; the caller treats both as fatal.
//
// Display copies of every field are sanitized before they reach an
// email body. The envelope and Reply-To use the unsanitized address:
// rewriting the address a reply goes to can silently break delivery.
func (c Config) SendSubmission(sub models.ContactSubmission) error {
	replyTo := validator.ASCIIEmail(sub.Email)
	if err := c.buildNotification(sub, replyTo).Send(c.transport); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	if err := c.buildAutoReply(sub, replyTo).Send(c.transport); err != nil {
		return fmt.Errorf("sending auto-reply: %w", err)
	}
	return nil
}

func (c Config) buildNotification(sub models.ContactSubmission, replyTo string) enmime.MailBuilder {
	name := sanitize.Text(sub.Name)
	return enmime.Builder().
		From("", c.sender).
		To("", c.contactAddress).
		ReplyTo("", replyTo).
		Subject(fmt.Sprintf(notificationSubject, name)).
		Text([]byte(notificationText(sub))).
		HTML([]byte(notificationHTML(sub)))
}

func (c Config) buildAutoReply(sub models.ContactSubmission, replyTo string) enmime.MailBuilder {
	name := sanitize.Text(sub.Name)
	return enmime.Builder().
		From("", c.sender).
		To("", replyTo).
		Subject(autoReplySubject).
		Text([]byte(autoReplyText(name, sub))).
		HTML([]byte(autoReplyHTML(name, sub)))
}
