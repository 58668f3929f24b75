package models

// ContactSubmission is the payload POSTed by the contact form.
// Honeypot is a hidden field that humans never fill in; any value
// there marks the submission as automated.
type ContactSubmission struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProjectType string `json:"projectType,omitempty"`
	Budget      string `json:"budget,omitempty"`
	Message     string `json:"message"`
	Honeypot    string `json:"honeypot,omitempty"`
}

// IsSpam reports whether the honeypot field was populated.
func (s ContactSubmission) IsSpam() bool {
	return s.Honeypot != ""
}
