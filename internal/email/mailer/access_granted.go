// internal/email/mailer/access_granted.go
package mailer

import "github.com/dangerclosesec/lockity/internal/email"

// AccessGrantedTemplateData contains data for the compartment access email
type AccessGrantedTemplateData struct {
	Name              string
	GrantedBy         string
	Role              string
	CompartmentNumber int
	SerialNumber      string
	OrganizationName  string
	AreaName          string
}

// SendAccessGranted tells a user they can now open a compartment.
func SendAccessGranted(s email.Sender, to string, data AccessGrantedTemplateData) error {
	return s.SendEmail(email.EmailData{
		To:           to,
		FromName:     "Lockity",
		Subject:      "Lockity - Compartment access granted",
		TemplateName: "compartment_access_granted",
		TemplateData: data,
	})
}
