package email

import (
	"context"
	"strings"
	"testing"

	"hrdesk/internal/platform/config"
)

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	m := New(config.Config{EmailEnabled: false, SMTPHost: "smtp.example.com"})
	if _, ok := m.(noopMailer); !ok {
		t.Fatalf("expected noop mailer, got %T", m)
	}
	if err := m.Send(context.Background(), "a@x", "b@x", "s", "b"); err != nil {
		t.Fatalf("noop send: %v", err)
	}
	if _, ok := New(config.Config{EmailEnabled: true}).(noopMailer); !ok {
		t.Fatal("expected noop mailer without a host")
	}
}

func TestBuildMessageStripsHeaderInjection(t *testing.T) {
	msg := string(buildMessage("hr@x", "dana@x\r\nBcc: evil@x", "Leave approved", "line one\nline two"))

	if strings.Contains(msg, "\r\nBcc:") {
		t.Fatalf("header injection survived: %q", msg)
	}
	if !strings.HasPrefix(msg, "From: hr@x\r\nTo: dana@xBcc: evil@x\r\nSubject: Leave approved\r\n") {
		t.Fatalf("unexpected headers: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two") {
		t.Fatalf("unexpected body: %q", msg)
	}
}
