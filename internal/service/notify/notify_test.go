package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wneessen/go-mail"

	"TrendWatch/internal/domain/models"
)

func sampleReport() models.Report {
	return models.Report{
		CycleID:     "cycle-1",
		Subject:     "Trading Bot Notifications",
		HTML:        "<html><body>hi</body></html>",
		Text:        "hi",
		Differences: []string{"Price for B: 11 -> 12"},
		Summaries:   []models.SymbolSummary{{Symbol: "B", Condition: models.ConditionHypeBuy, ActionDate: "2024-03-15", Price: "12"}},
	}
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(context.Context, models.Report) error {
	s.calls++
	return s.err
}

func TestMultiAttemptsAllChannels(t *testing.T) {
	failing := &stubNotifier{err: errors.New("down")}
	ok := &stubNotifier{}
	m := NewMulti(nil, nil, Named{Name: "a", Notifier: failing}, Named{Name: "b", Notifier: ok})

	err := m.Notify(context.Background(), sampleReport())
	if err == nil || !strings.Contains(err.Error(), "a: down") {
		t.Fatalf("expected joined channel error, got %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatal("every channel must be attempted")
	}

	if err := NewMulti(nil, nil, Named{Name: "b", Notifier: ok}).Notify(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSMTPMessage(t *testing.T) {
	n := NewSMTP(SMTPConfig{Host: "mail.local", Port: 25, From: "bot@example.com", To: []string{"me@example.com"}})
	n.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

	var raw bytes.Buffer
	n.send = func(_ context.Context, msg *mail.Msg) error {
		_, err := msg.WriteTo(&raw)
		return err
	}

	if err := n.Notify(context.Background(), sampleReport()); err != nil {
		t.Fatal(err)
	}
	msg := raw.String()
	for _, want := range []string{
		"Subject: Trading Bot Notifications\r\n",
		"<me@example.com>",
		"text/html",
		"<html><body>hi</body></html>",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSMTPEncodesSubject(t *testing.T) {
	n := NewSMTP(SMTPConfig{Host: "mail.local", From: "bot@example.com", To: []string{"me@example.com"}})
	var raw bytes.Buffer
	n.send = func(_ context.Context, msg *mail.Msg) error {
		_, err := msg.WriteTo(&raw)
		return err
	}

	report := sampleReport()
	report.Subject = "Tín hiệu giao dịch"
	if err := n.Notify(context.Background(), report); err != nil {
		t.Fatal(err)
	}
	msg := raw.String()
	if strings.Contains(msg, report.Subject) || !strings.Contains(msg, "=?UTF-8?") {
		t.Fatalf("subject not RFC 2047 encoded:\n%s", msg)
	}
}

func TestSMTPUnreachableRelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	n := NewSMTP(SMTPConfig{
		Host: "127.0.0.1", Port: port, From: "bot@example.com", To: []string{"me@example.com"},
		Timeout: time.Second,
	})
	start := time.Now()
	if err := n.Notify(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected a dial error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("send did not honour the timeout")
	}
}

func TestSMTPRejectsBadSender(t *testing.T) {
	n := NewSMTP(SMTPConfig{Host: "h", From: "not an address", To: []string{"me@example.com"}})
	n.send = func(context.Context, *mail.Msg) error {
		t.Fatal("send must not be reached")
		return nil
	}
	if err := n.Notify(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected an address error")
	}
}

func TestSMTPRequiresRecipients(t *testing.T) {
	if err := NewSMTP(SMTPConfig{Host: "h"}).Notify(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error without recipients")
	}
}

func TestWebhookPostsJSON(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), sampleReport()); err != nil {
		t.Fatal(err)
	}
	if got.CycleID != "cycle-1" || len(got.Differences) != 1 || got.Summaries[0].Symbol != "B" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestTelegram(t *testing.T) {
	var body map[string]interface{}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegram("TOKEN", "42")
	n.baseURL = srv.URL
	if err := n.Notify(context.Background(), sampleReport()); err != nil {
		t.Fatal(err)
	}
	if path != "/botTOKEN/sendMessage" || body["chat_id"] != "42" {
		t.Fatalf("unexpected request path=%s body=%v", path, body)
	}
}

type capturePublisher struct {
	topic string
	key   []byte
	value interface{}
}

func (p *capturePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestKafkaNotifier(t *testing.T) {
	pub := &capturePublisher{}
	if err := NewKafka(pub, "reports").Notify(context.Background(), sampleReport()); err != nil {
		t.Fatal(err)
	}
	ev, ok := pub.value.(reportEvent)
	if pub.topic != "reports" || string(pub.key) != "cycle-1" || !ok || len(ev.Summaries) != 1 {
		t.Fatalf("unexpected publish %+v", pub)
	}
}
