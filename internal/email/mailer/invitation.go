// internal/email/mailer/invitation.go
package mailer

import "github.com/dangerclosesec/lockity/internal/email"

// InvitationTemplateData contains data for the invitation email template
type InvitationTemplateData struct {
	SenderEmail string
	GuestEmail  string
	SignupLink  string
}

// SendInvitation invites guestEmail, who has no account yet, on behalf of
// senderEmail.
func SendInvitation(s email.Sender, senderEmail, guestEmail, signupLink string) error {
	return s.SendEmail(email.EmailData{
		To:           guestEmail,
		FromName:     "Lockity",
		Subject:      "Lockity - Invitation",
		TemplateName: "invitation",
		TemplateData: InvitationTemplateData{
			SenderEmail: senderEmail,
			GuestEmail:  guestEmail,
			SignupLink:  signupLink,
		},
	})
}
