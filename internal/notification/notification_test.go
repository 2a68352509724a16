package notification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/config"
	"github.com/Rocksteady808/roolify-sub002/internal/routing"
)

type fakeProvider struct {
	mu       sync.Mutex
	sent     []string
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Send(ctx context.Context, m *Message) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m.To)
	if f.fail[m.To] {
		return errors.New("mailbox unavailable")
	}
	return nil
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	p := &fakeProvider{fail: map[string]bool{"b@y.com": true}}
	d := NewDispatcher(p, 4, zap.NewNop())

	results := d.Dispatch(context.Background(), []string{"a@x.com", "b@y.com", "c@z.com"}, "Hi", "<p>hi</p>", nil)

	require.Len(t, results, 3)
	assert.Equal(t, Result{Recipient: "a@x.com", Status: StatusSent}, results[0])
	assert.Equal(t, "b@y.com", results[1].Recipient)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.EqualError(t, results[1].Err, "mailbox unavailable")
	assert.Equal(t, StatusSent, results[2].Status)
	assert.Equal(t, 1, Failed(results))
	assert.ElementsMatch(t, []string{"a@x.com", "b@y.com", "c@z.com"}, p.sent)
}

func TestDispatcher_NoRecipients(t *testing.T) {
	p := &fakeProvider{}
	d := NewDispatcher(p, 4, zap.NewNop())

	results := d.Dispatch(context.Background(), nil, "Hi", "", nil)
	assert.Empty(t, results)
	assert.Empty(t, p.sent)
}

func TestDispatcher_BoundedParallelism(t *testing.T) {
	p := &fakeProvider{delay: 20 * time.Millisecond}
	d := NewDispatcher(p, 2, zap.NewNop())

	recipients := []string{"1@x.com", "2@x.com", "3@x.com", "4@x.com", "5@x.com", "6@x.com"}
	results := d.Dispatch(context.Background(), recipients, "Hi", "", nil)

	assert.Equal(t, 0, Failed(results))
	assert.LessOrEqual(t, p.peak.Load(), int32(2))
	assert.Len(t, p.sent, len(recipients))
}

func TestSendGridProvider_Send(t *testing.T) {
	var got sendGridMail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewSendGridProvider("sg-key", srv.URL, Sender{Email: "noreply@roolify.com", Name: "Roolify"})
	err := p.Send(context.Background(), &Message{
		To:          "a@x.com",
		Subject:     "New submission: Contact",
		HTML:        "<p>hello</p>",
		Attachments: []Attachment{{Filename: "cv.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}},
	})
	require.NoError(t, err)

	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "a@x.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "noreply@roolify.com", got.From.Email)
	assert.Equal(t, "New submission: Contact", got.Subject)
	assert.Equal(t, []sendGridContent{{Type: "text/html", Value: "<p>hello</p>"}}, got.Content)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF")), got.Attachments[0].Content)
	assert.Equal(t, "attachment", got.Attachments[0].Disposition)
}

func TestSendGridProvider_SendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"forbidden"}]}`, http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewSendGridProvider("sg-key", srv.URL, Sender{Email: "noreply@roolify.com"})
	err := p.Send(context.Background(), &Message{To: "a@x.com"})

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, http.StatusForbidden, sendErr.Status)
	assert.Contains(t, sendErr.Body, "forbidden")
}

func TestSendGridProvider_MissingKey(t *testing.T) {
	p := NewSendGridProvider("", "", Sender{Email: "noreply@roolify.com"})
	assert.Error(t, p.Send(context.Background(), &Message{To: "a@x.com"}))
}

func TestSMTPProvider_Send(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	p := NewSMTPProvider(SMTPConfig{Host: "mail.example.com", Username: "u", Password: "p"}, Sender{Email: "noreply@roolify.com", Name: "Roolify"})
	p.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	require.NoError(t, p.Send(context.Background(), &Message{To: "a@x.com", Subject: "Hello", HTML: "<p>hi</p>"}))
	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	assert.Contains(t, gotMsg, "From: \"Roolify\" <noreply@roolify.com>\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=UTF-8")
	assert.True(t, strings.HasSuffix(gotMsg, "<p>hi</p>"))
}

func TestBuildMIME_Attachments(t *testing.T) {
	msg, err := buildMIME(Sender{Email: "noreply@roolify.com"}, &Message{
		To:          "a@x.com",
		Subject:     "Files",
		HTML:        "<p>see attached</p>",
		Attachments: []Attachment{{Filename: "notes.txt", Content: []byte("hello")}},
	})
	require.NoError(t, err)

	s := string(msg)
	assert.Contains(t, s, "Content-Type: multipart/mixed; boundary=")
	assert.Contains(t, s, "<p>see attached</p>")
	assert.Contains(t, s, `attachment; filename=notes.txt`)
	assert.Contains(t, s, "Content-Type: application/octet-stream")
	assert.Contains(t, s, base64.StdEncoding.EncodeToString([]byte("hello")))
}

func TestSMTPProvider_RequiresHost(t *testing.T) {
	p := NewSMTPProvider(SMTPConfig{}, Sender{Email: "noreply@roolify.com"})
	assert.Error(t, p.Send(context.Background(), &Message{To: "a@x.com"}))
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{provider: "sendgrid", want: "sendgrid"},
		{provider: "", want: "sendgrid"},
		{provider: "SMTP", want: "smtp"},
		{provider: "log", want: "log"},
		{provider: "pigeon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(config.EmailConfig{Provider: tt.provider}, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func testFields() routing.Fields {
	var f routing.Fields
	f.Set("First Name", routing.StringValue("Ada"))
	f.Set("HBI Account Rep", routing.StringValue("<Aaron>"))
	f.Set("Newsletter", routing.StringValue("on"))
	f.Set("Interests", routing.ListValue("Chess", "Go"))
	return f
}

func TestRenderer_CustomTemplate(t *testing.T) {
	r := NewRenderer(routing.NewResolver())
	subject, body := r.Render(Template{
		Subject: "{{ first-name }} via {{form_name}}",
		HTML:    "<p>{{First Name}} / {{hbi_account_rep}} / {{Missing}} / {{Interests}} / {{site_id}}</p>",
	}, Content{
		FormName: "Contact",
		SiteID:   "site-abc",
		Fields:   testFields(),
	})

	assert.Equal(t, "Ada via Contact", subject)
	assert.Equal(t, "<p>Ada / &lt;Aaron&gt; /  / Chess, Go / site-abc</p>", body)
}

func TestRenderer_DefaultSubjectAndBody(t *testing.T) {
	r := NewRenderer(routing.NewResolver())
	submitted := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	subject, body := r.Render(Template{}, Content{FormName: "Contact", SubmittedAt: submitted, Fields: testFields()})

	assert.Equal(t, "New submission: Contact", subject)
	assert.Contains(t, body, "<h2>New submission: Contact</h2>")
	assert.Contains(t, body, `<tr><th align="left">HBI Account Rep</th><td>&lt;Aaron&gt;</td></tr>`)
	assert.Contains(t, body, "Submitted at 2026-10-14 09:30:00 UTC")
}

func TestRenderer_DisplayValues(t *testing.T) {
	r := NewRenderer(routing.NewResolver())

	t.Run("checkbox template", func(t *testing.T) {
		_, body := r.Render(Template{
			HTML:                "{{Newsletter}}|{{First Name}}",
			CustomValueTemplate: "{{field}}: Yes ({{value}})",
		}, Content{Fields: testFields()})
		assert.Equal(t, "Newsletter: Yes (on)|Ada", body)
	})

	t.Run("per-field mapping wins", func(t *testing.T) {
		_, body := r.Render(Template{
			HTML:                "{{Newsletter}}",
			CustomValueTemplate: "{{value}}!",
			CustomValues:        map[string]string{"newsletter": "Subscribed"},
		}, Content{Fields: testFields()})
		assert.Equal(t, "Subscribed", body)
	})

	t.Run("all fields text in subject", func(t *testing.T) {
		subject, _ := r.Render(Template{Subject: "{{all_fields}}"}, Content{Fields: routing.Fields{
			{Name: "A", Value: routing.StringValue("1")},
			{Name: "B", Value: routing.StringValue("2")},
		}})
		assert.Equal(t, "A: 1, B: 2", subject)
	})
}
