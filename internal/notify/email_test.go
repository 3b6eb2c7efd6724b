package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	gomail "gopkg.in/mail.v2"

	"github.com/kalambet/prism/internal/schema"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newTestSender(d dialer) *EmailSender {
	s := NewEmailSender(EmailConfig{SMTPServer: "smtp.example.com", SMTPPort: 587, FromEmail: "prism@example.com"})
	s.dialer = d
	return s
}

func item() schema.HistoryItem {
	r := schema.AnalysisResult{Summary: "Bullish outlook.", Sentiment: schema.SentimentBullish, DocumentType: "News"}
	return schema.HistoryItem{AnalysisResult: r.Normalize(), ID: "1", FileName: "news.txt", Timestamp: 1}
}

func TestSendReport(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSender(d)

	if err := s.SendReport(context.Background(), "me@example.com", item()); err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(d.sent))
	}
	m := d.sent[0]
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Prism report: news.txt [BULLISH]" {
		t.Errorf("Subject = %v", got)
	}
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "me@example.com" {
		t.Errorf("To = %v", got)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	raw := buf.String()
	if !strings.Contains(raw, "text/plain") || !strings.Contains(raw, "text/html") {
		t.Error("expected multipart alternative with text and html bodies")
	}
}

func TestSendReport_Disabled(t *testing.T) {
	s := NewEmailSender(EmailConfig{})
	if err := s.SendReport(context.Background(), "me@example.com", item()); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestSendReport_BadRecipient(t *testing.T) {
	d := &fakeDialer{}
	if err := newTestSender(d).SendReport(context.Background(), "nobody", item()); !errors.Is(err, ErrInvalidRecipient) {
		t.Error("expected error for invalid recipient")
	}
	if len(d.sent) != 0 {
		t.Error("message sent to invalid recipient")
	}
}

func TestSend_DialError(t *testing.T) {
	boom := errors.New("connection refused")
	err := newTestSender(&fakeDialer{err: boom}).Send(context.Background(), Message{To: "a@b.c", Subject: "s", Text: "t"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped dial error", err)
	}
}

func TestRender_FallbackSubject(t *testing.T) {
	msg, err := Render("a@b.c", schema.HistoryItem{AnalysisResult: schema.Fallback(), FileName: "x.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Subject != "Prism report: x.pdf" {
		t.Errorf("Subject = %q", msg.Subject)
	}
}
