package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(t *testing.T) (*Service, *[]sentMail) {
	t.Helper()
	svc := NewService(Config{
		Host:     "smtp.example.com",
		Port:     "587",
		From:     "hello@example.com",
		FromName: "Storyworlds",
		SiteName: "Storyworlds",
		BaseURL:  "https://storyworlds.example",
	})
	var sent []sentMail
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return svc, &sent
}

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{name: "empty config", config: Config{}, expected: false},
		{name: "missing host", config: Config{Port: "587", From: "a@example.com"}, expected: false},
		{name: "missing port", config: Config{Host: "smtp.example.com", From: "a@example.com"}, expected: false},
		{name: "missing from", config: Config{Host: "smtp.example.com", Port: "587"}, expected: false},
		{name: "fully configured", config: Config{Host: "smtp.example.com", Port: "587", From: "a@example.com"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSendHTMLEmailRequiresConfig(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendHTMLEmail([]string{"a@example.com"}, "x", "<p>x</p>"); err == nil {
		t.Fatal("expected error when not configured")
	}
}

func TestSendNewsletterWelcome(t *testing.T) {
	svc, sent := newTestService(t)

	if err := svc.SendNewsletterWelcome("guest@example.com"); err != nil {
		t.Fatalf("SendNewsletterWelcome() error = %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(*sent))
	}
	m := (*sent)[0]
	if m.addr != "smtp.example.com:587" || m.from != "hello@example.com" {
		t.Errorf("unexpected envelope: %+v", m)
	}
	if len(m.to) != 1 || m.to[0] != "guest@example.com" {
		t.Errorf("unexpected recipients: %v", m.to)
	}
	for _, want := range []string{
		"Subject: Welcome to Storyworlds",
		"https://storyworlds.example/journal",
		"Content-Type: text/plain",
		"Content-Type: text/html",
		"Thank you for subscribing.",
	} {
		if !strings.Contains(m.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestPlainTextPartSkipsHead(t *testing.T) {
	svc, _ := newTestService(t)
	msg := string(svc.buildMessage([]string{"a@example.com"}, "Hi", "<html><head><style>body{}</style></head><body><p>Hello there</p></body></html>"))
	plain := msg[strings.Index(msg, "text/plain"):strings.Index(msg, "text/html")]
	if strings.Contains(plain, "body{}") {
		t.Error("plain part should not include styles")
	}
	if !strings.Contains(plain, "Hello there") {
		t.Error("plain part should include body text")
	}
}

func TestSendInquiryNotificationEscapesInput(t *testing.T) {
	svc, sent := newTestService(t)

	err := svc.SendInquiryNotification("concierge@example.com", InquiryData{
		Name:     "Ada",
		Email:    "ada@example.com",
		Interest: "Sahara",
		Message:  "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("SendInquiryNotification() error = %v", err)
	}
	m := (*sent)[0]
	if m.to[0] != "concierge@example.com" {
		t.Errorf("expected concierge recipient, got %v", m.to)
	}
	html := m.msg[strings.Index(m.msg, "text/html"):]
	if strings.Contains(html, "<script>") || !strings.Contains(html, "&lt;script&gt;") {
		t.Error("inquiry message should be escaped in the HTML part")
	}
	if !strings.Contains(m.msg, "https://storyworlds.example/admin/inquiries") {
		t.Error("notification should link to the admin inbox")
	}
}

func TestSendInquiryAcknowledgement(t *testing.T) {
	svc, sent := newTestService(t)
	if err := svc.SendInquiryAcknowledgement(InquiryData{Name: "Ada", Email: "ada@example.com", Interest: "Kyoto"}); err != nil {
		t.Fatalf("SendInquiryAcknowledgement() error = %v", err)
	}
	m := (*sent)[0]
	if m.to[0] != "ada@example.com" || !strings.Contains(m.msg, "about Kyoto") {
		t.Errorf("unexpected acknowledgement: %+v", m)
	}
}

func TestSendPropagatesTransportErrors(t *testing.T) {
	svc, _ := newTestService(t)
	svc.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay denied") }
	if err := svc.SendNewsletterWelcome("guest@example.com"); err == nil {
		t.Fatal("expected transport error")
	}
}
