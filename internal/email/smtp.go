package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// base64 bodies are wrapped at this width.
const mimeLineLength = 76

// sendWithSMTP relays a multipart/alternative message through the
// configured SMTP host.
func (s *Service) sendWithSMTP(data EmailData, htmlContent, textContent string) error {
	relay := s.config.SMTP
	if relay.Host == "" {
		return fmt.Errorf("smtp relay host is not configured")
	}

	var auth smtp.Auth
	if relay.Username != "" {
		auth = smtp.PlainAuth("", relay.Username, relay.Password, relay.Host)
	}
	addr := relay.Host + ":" + strconv.Itoa(relay.Port)

	msg := buildMessage(data, htmlContent, textContent, "lockity-"+uuid.NewString(), time.Now())
	if err := s.smtpSend(addr, auth, data.From, []string{data.To}, msg); err != nil {
		return fmt.Errorf("sending email via SMTP to %s: %w", addr, err)
	}
	return nil
}

func buildMessage(data EmailData, htmlContent, textContent, boundary string, now time.Time) []byte {
	from := (&mail.Address{Name: data.FromName, Address: data.From}).String()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", data.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", data.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	writePart(&buf, boundary, "text/plain", textContent)
	writePart(&buf, boundary, "text/html", htmlContent)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s; charset=utf-8\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	for len(encoded) > mimeLineLength {
		buf.WriteString(encoded[:mimeLineLength])
		buf.WriteString("\r\n")
		encoded = encoded[mimeLineLength:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
}
