// Package mail builds and delivers the transactional emails of the service.
package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"
)

// Message is an outbound email with a plain text and an HTML body.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

const resetSubject = "Password reset request received from SceneIt"

var resetTemplate = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; color: #333; line-height: 1.5;">
  <h2 style="color: #2C3E50;">Hello,</h2>
  <p>Please click on this url to reset your password.</p>
  <p>This link will only be valid for {{.Minutes}} minutes from now.</p>
  <a href="{{.Link}}" style="display: inline-block; padding: 10px 20px; text-decoration: none;">{{.Link}}</a>
  <p style="margin-top: 20px; font-size: 12px; color: #888;">If you didn't request this, please ignore this email.</p>
</div>`))

// ResetPasswordMessage is the email carrying a password reset link.
func ResetPasswordMessage(to, link string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())

	var html bytes.Buffer
	_ = resetTemplate.Execute(&html, struct {
		Link    string
		Minutes int
	}{Link: link, Minutes: minutes})

	text := fmt.Sprintf(
		"Please click on this url to reset your password\n\n%s\n\nThis link will only be valid for %d minutes from now!",
		link, minutes,
	)
	return Message{To: to, Subject: resetSubject, Text: text, HTML: html.String()}
}

// encode renders msg as a MIME message ready for SMTP DATA.
func encode(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := []string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + writer.Boundary(),
	}
	var out bytes.Buffer
	out.WriteString(strings.Join(header, "\r\n"))
	out.WriteString("\r\n\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, part := range parts {
		if part.body == "" {
			continue
		}
		w, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	out.Write(buf.Bytes())
	return out.Bytes(), nil
}
