package email

import (
	"fmt"

	"github.com/topea/contact-backend/models"
	"github.com/topea/contact-backend/sanitize"
)

const notificationSubject = "New Contact Form Submission from %s"
const autoReplySubject = "Thank you for contacting Topea"

const notificationTextTemplate = `
Name: %[1]s
Email: %[2]s
Project Type: %[3]s
Budget: %[4]s
Message:
%[5]s
`

const notificationHTMLTemplate = `<h2>New Contact Form Submission</h2>
<p><strong>Name:</strong> %[1]s</p>
<p><strong>Email:</strong> %[2]s</p>
<p><strong>Project Type:</strong> %[3]s</p>
<p><strong>Budget:</strong> %[4]s</p>
<p><strong>Message:</strong></p>
<p>%[5]s</p>
`

const autoReplyTextTemplate = `
Dear %[1]s,

Thank you for reaching out to us. We have received your message and will get back to you within 24 business hours.

Here's a summary of your inquiry:
- Project Type: %[2]s
- Budget: %[3]s
- Message: %[4]s

Best regards,
The Topea Team
`

const autoReplyHTMLTemplate = `<h2>Thank you for contacting Topea</h2>
<p>Dear %[1]s,</p>
<p>Thank you for reaching out to us. We have received your message and will get back to you within 24 business hours.</p>
<p>Here's a summary of your inquiry:</p>
<ul>
  <li><strong>Project Type:</strong> %[2]s</li>
  <li><strong>Budget:</strong> %[3]s</li>
  <li><strong>Message:</strong> %[4]s</li>
</ul>
<p>Best regards,<br>The Topea Team</p>
`

func orNotSpecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

func notificationText(sub models.ContactSubmission) string {
	return fmt.Sprintf(notificationTextTemplate,
		sanitize.Text(sub.Name),
		sanitize.Text(sub.Email),
		orNotSpecified(sanitize.Text(sub.ProjectType)),
		orNotSpecified(sanitize.Text(sub.Budget)),
		sanitize.Text(sub.Message))
}

func notificationHTML(sub models.ContactSubmission) string {
	return fmt.Sprintf(notificationHTMLTemplate,
		sanitize.Text(sub.Name),
		sanitize.Text(sub.Email),
		orNotSpecified(sanitize.Text(sub.ProjectType)),
		orNotSpecified(sanitize.Text(sub.Budget)),
		sanitize.MessageHTML(sub.Message))
}

func autoReplyText(name string, sub models.ContactSubmission) string {
	return fmt.Sprintf(autoReplyTextTemplate,
		name,
		orNotSpecified(sanitize.Text(sub.ProjectType)),
		orNotSpecified(sanitize.Text(sub.Budget)),
		sanitize.Text(sub.Message))
}

func autoReplyHTML(name string, sub models.ContactSubmission) string {
	return fmt.Sprintf(autoReplyHTMLTemplate,
		name,
		orNotSpecified(sanitize.Text(sub.ProjectType)),
		orNotSpecified(sanitize.Text(sub.Budget)),
		sanitize.MessageHTML(sub.Message))
}
