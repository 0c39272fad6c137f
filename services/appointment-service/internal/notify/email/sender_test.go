package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
)

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s := NewSMTPSender("localhost", "1025", "")
	var gotAddr string
	var gotBody []byte
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotBody = msg
		return nil
	}

	err := s.Send(context.Background(), Message{To: "ada@example.com", ToName: "Ada", Subject: "Confirmed", Body: "See you"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "localhost:1025" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	body := string(gotBody)
	for _, want := range []string{"From: no-reply@apptbook.local", `To: "Ada" <ada@example.com>`, "Subject: Confirmed", "See you"} {
		if !strings.Contains(body, want) {
			t.Fatalf("message missing %q:\n%s", want, body)
		}
	}
}

func TestSMTPSenderHonorsCancelledContext(t *testing.T) {
	s := NewSMTPSender("localhost", "1025", "")
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, Message{To: "x@example.com"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSendGridSender(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" || r.Header.Get("Authorization") != "Bearer key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewSendGridSender(SendGridConfig{APIKey: "key-1", FromEmail: "desk@example.com", Host: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewSendGridSender: %v", err)
	}
	if err := s.Send(context.Background(), Message{To: "ada@example.com", Subject: "Confirmed", Body: "See you"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload["subject"] != "Confirmed" {
		t.Fatalf("unexpected payload %v", payload)
	}

	bad, _ := NewSendGridSender(SendGridConfig{APIKey: "wrong", Host: srv.URL}, nil)
	if err := bad.Send(context.Background(), Message{To: "ada@example.com", Subject: "x", Body: "y"}); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestSendGridRequiresKey(t *testing.T) {
	if _, err := NewSendGridSender(SendGridConfig{}, nil); err == nil {
		t.Fatal("expected error without api key")
	}
}
