package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWebhookSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL, "tok").Send(context.Background(), "+1 (555) 010-0100", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["to"] != "+15550100100" || got["body"] != "hello" {
		t.Fatalf("unexpected payload %v", got)
	}

	err := NewWebhookSender(srv.URL, "").Send(context.Background(), "+15550100100", "hello")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusForbidden || statusErr.Temporary() {
		t.Fatalf("expected permanent 403 StatusError, got %v", err)
	}
	if err := NewWebhookSender("", "").Send(context.Background(), "+15550100100", "hello"); err == nil {
		t.Fatal("expected error without url")
	}
	if err := NewWebhookSender(srv.URL, "tok").Send(context.Background(), "call me", "hello"); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestWebhookSenderTruncatesLongBodies(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL, "").Send(context.Background(), "15550100100", strings.Repeat("é", 2000)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := utf8.RuneCountInString(got["body"]); n != MaxBodyRunes {
		t.Fatalf("expected %d runes, got %d", MaxBodyRunes, n)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]bool{
		"+44 20 7946 0958": true,
		"555.010.0100":     true,
		"12345":            false,
		"+1-800-FLOWERS":   false,
		"1+5550100100":     false,
	}
	for in, ok := range cases {
		_, err := NormalizePhone(in)
		if (err == nil) != ok {
			t.Fatalf("NormalizePhone(%q) err=%v, want ok=%v", in, err, ok)
		}
	}
}

func TestStatusErrorTemporary(t *testing.T) {
	for code, want := range map[int]bool{429: true, 502: true, 400: false, 404: false} {
		if got := (&StatusError{Code: code}).Temporary(); got != want {
			t.Fatalf("Temporary(%d) = %v, want %v", code, got, want)
		}
	}
}
