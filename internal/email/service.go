// Package email sends guest and concierge mail via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"storyworlds/site/internal/richtext"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	SiteName string
	BaseURL  string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	if config.SiteName == "" {
		config.SiteName = "Storyworlds"
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message whose plain-text part is derived
// from the HTML body.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	return s.send(s.server, s.auth, s.config.From, to, s.buildMessage(to, subject, htmlBody))
}

func (s *Service) buildMessage(to []string, subject, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}
	boundary := "storyworlds-" + uuid.NewString()

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", richtext.PlainText(bodyOf(htmlBody)))
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

// bodyOf returns the contents of <body> so the plain-text part skips <head>.
func bodyOf(doc string) string {
	start := strings.Index(doc, "<body>")
	end := strings.LastIndex(doc, "</body>")
	if start < 0 || end < start {
		return doc
	}
	return doc[start+len("<body>") : end]
}

type WelcomeData struct {
	SiteName string
	BaseURL  string
	Email    string
}

type InquiryData struct {
	SiteName string
	BaseURL  string
	Name     string
	Email    string
	Phone    string
	Interest string
	Message  string
}

// SendNewsletterWelcome greets a new subscriber. Callers send it only when
// the subscription created a row, so re-subscribing does not mail again.
func (s *Service) SendNewsletterWelcome(to string) error {
	body, err := render(welcomeTemplate, WelcomeData{
		SiteName: s.config.SiteName,
		BaseURL:  s.config.BaseURL,
		Email:    to,
	})
	if err != nil {
		return fmt.Errorf("render welcome template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, "Welcome to "+s.config.SiteName, body)
}

// SendInquiryNotification tells the concierge team about a new inquiry.
func (s *Service) SendInquiryNotification(team string, data InquiryData) error {
	data.SiteName = s.config.SiteName
	data.BaseURL = s.config.BaseURL
	body, err := render(inquiryNotificationTemplate, data)
	if err != nil {
		return fmt.Errorf("render inquiry template: %w", err)
	}
	return s.SendHTMLEmail([]string{team}, "New concierge inquiry from "+data.Name, body)
}

// SendInquiryAcknowledgement confirms receipt to the guest.
func (s *Service) SendInquiryAcknowledgement(data InquiryData) error {
	data.SiteName = s.config.SiteName
	data.BaseURL = s.config.BaseURL
	body, err := render(inquiryAckTemplate, data)
	if err != nil {
		return fmt.Errorf("render acknowledgement template: %w", err)
	}
	return s.SendHTMLEmail([]string{data.Email}, "We have received your request", body)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const emailStyle = `
        body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.7; color: #2b2622; max-width: 600px; margin: 0 auto; padding: 24px; background: #faf7f2; }
        .header { border-bottom: 1px solid #b08d57; padding-bottom: 12px; margin-bottom: 24px; letter-spacing: 0.08em; text-transform: uppercase; }
        .button { display: inline-block; padding: 12px 28px; background: #2b2622; color: #faf7f2; text-decoration: none; margin: 20px 0; }
        .footer { margin-top: 32px; padding-top: 16px; border-top: 1px solid #e4dccf; font-size: 12px; color: #7a6f63; }
        dt { font-weight: bold; }
        dd { margin: 0 0 12px 0; }`

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Welcome to {{.SiteName}}</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header"><h1>{{.SiteName}}</h1></div>

    <h2>Welcome to the journal</h2>

    <p>Thank you for subscribing. You will receive new storyworlds, field notes from our storytellers and seasonal journeys as they are published.</p>

    <p><a href="{{.BaseURL}}/journal" class="button">Read the Journal</a></p>

    <div class="footer">
        <p>This message was sent to {{.Email}} because it was entered on {{.SiteName}}.</p>
    </div>
</body>
</html>`))

var inquiryNotificationTemplate = template.Must(template.New("inquiry").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New concierge inquiry</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header"><h1>{{.SiteName}} Concierge</h1></div>

    <h2>New inquiry</h2>
    <dl>
        <dt>Name</dt><dd>{{.Name}}</dd>
        <dt>Email</dt><dd>{{.Email}}</dd>
        {{if .Phone}}<dt>Phone</dt><dd>{{.Phone}}</dd>{{end}}
        {{if .Interest}}<dt>Interest</dt><dd>{{.Interest}}</dd>{{end}}
        <dt>Message</dt><dd>{{.Message}}</dd>
    </dl>

    <p><a href="{{.BaseURL}}/admin/inquiries" class="button">Open Inquiries</a></p>
</body>
</html>`))

var inquiryAckTemplate = template.Must(template.New("ack").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>We have received your request</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header"><h1>{{.SiteName}}</h1></div>

    <p>Dear {{.Name}},</p>

    <p>Thank you for reaching out{{if .Interest}} about {{.Interest}}{{end}}. A member of our concierge team will be in touch within one business day.</p>

    <div class="footer">
        <p>{{.SiteName}} Concierge</p>
    </div>
</body>
</html>`))
