// internal/workers/visit-reminder/handler_test.go
package visitreminder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	awsclient "property-tracker/internal/common/aws"
	"property-tracker/internal/common/config"
	"property-tracker/internal/common/logger"
	"property-tracker/internal/models"
	"property-tracker/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

type fakeVisits struct {
	mu       sync.Mutex
	due      []store.DueVisit
	err      error
	from, to time.Time
	limit    int
	marked   []string
}

func (f *fakeVisits) DueForReminder(ctx context.Context, from, to time.Time, limit int) ([]store.DueVisit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from, f.to, f.limit = from, to, limit
	return f.due, f.err
}

func (f *fakeVisits) MarkReminded(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{
		Enabled:   true,
		Interval:  time.Minute,
		Lookahead: 24 * time.Hour,
		BatchSize: 10,
		Timeout:   time.Second,
	}
}

func dueVisit(id, email string) store.DueVisit {
	visit := fixedNow.Add(3 * time.Hour)
	return store.DueVisit{
		Property: models.Property{
			ID:          id,
			Title:       "Bright flat",
			Address:     "Main 1",
			URL:         "https://listings.example.com/" + id,
			NextVisitAt: &visit,
		},
		GroupName:  "Downtown",
		OwnerEmail: email,
		OwnerName:  "Ana",
	}
}

type sent struct {
	mu       sync.Mutex
	emails   []*ses.SendEmailInput
	messages []*sns.PublishInput
}

func createTestHandler(t *testing.T, visits *fakeVisits, sesErr, snsErr error) (*Handler, *sent) {
	out := &sent{}
	sesAPI := &MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		out.mu.Lock()
		defer out.mu.Unlock()
		out.emails = append(out.emails, params)
		return &ses.SendEmailOutput{}, sesErr
	}}
	snsAPI := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
		out.mu.Lock()
		defer out.mu.Unlock()
		out.messages = append(out.messages, params)
		return &sns.PublishOutput{}, snsErr
	}}

	h := NewHandler(createTestConfig(), visits,
		awsclient.NewSESClientWithAPI(sesAPI, "noreply@tracker.example.com"),
		awsclient.NewSNSClientWithAPI(snsAPI, "arn:aws:sns:us-east-1:123:visits"),
		logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h, out
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	visits := &fakeVisits{due: []store.DueVisit{dueVisit("p1", "ana@example.com")}}
	h, out := createTestHandler(t, visits, nil, nil)

	output, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Output{Due: 1, Emailed: 1, Published: 1}, output)

	assert.Equal(t, fixedNow, visits.from)
	assert.Equal(t, fixedNow.Add(24*time.Hour), visits.to)
	assert.Equal(t, 10, visits.limit)
	assert.Equal(t, []string{"p1"}, visits.marked)

	require.Len(t, out.emails, 1)
	email := out.emails[0]
	assert.Equal(t, []string{"ana@example.com"}, email.Destination.ToAddresses)
	assert.Equal(t, "noreply@tracker.example.com", *email.Source)
	assert.Equal(t, "Visit reminder: Bright flat", *email.Message.Subject.Data)
	assert.Contains(t, *email.Message.Body.Text.Data, "Hello Ana")
	assert.Contains(t, *email.Message.Body.Text.Data, "\"Downtown\" search at Fri 1 Mar 12:00 UTC")

	require.Len(t, out.messages, 1)
	msg := out.messages[0]
	assert.Equal(t, EventType, *msg.MessageAttributes["eventType"].StringValue)
	var event Event
	require.NoError(t, json.Unmarshal([]byte(*msg.Message), &event))
	assert.Equal(t, "p1", event.PropertyID)
	assert.Equal(t, "Downtown", event.GroupName)
}

func TestHandler_Execute_PartialDelivery(t *testing.T) {
	tests := []struct {
		name       string
		sesErr     error
		snsErr     error
		wantOutput *Output
		wantMarked int
	}{
		{
			name:       "email fails, event published",
			sesErr:     errors.New("throttled"),
			wantOutput: &Output{Due: 1, Published: 1},
			wantMarked: 1,
		},
		{
			name:       "event fails, email sent",
			snsErr:     errors.New("topic not found"),
			wantOutput: &Output{Due: 1, Emailed: 1},
			wantMarked: 1,
		},
		{
			name:       "both fail",
			sesErr:     errors.New("throttled"),
			snsErr:     errors.New("topic not found"),
			wantOutput: &Output{Due: 1, Failed: 1},
			wantMarked: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visits := &fakeVisits{due: []store.DueVisit{dueVisit("p1", "ana@example.com")}}
			h, _ := createTestHandler(t, visits, tt.sesErr, tt.snsErr)

			output, err := h.Execute(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutput, output)
			assert.Len(t, visits.marked, tt.wantMarked)
		})
	}
}

func TestHandler_Execute_EmailOnly(t *testing.T) {
	visits := &fakeVisits{due: []store.DueVisit{dueVisit("p1", "ana@example.com"), dueVisit("p2", "")}}
	h, out := createTestHandler(t, visits, nil, nil)
	h.events = nil

	output, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Output{Due: 2, Emailed: 1, Failed: 1}, output)
	assert.Equal(t, []string{"p1"}, visits.marked)
	assert.Len(t, out.messages, 0)
}

func TestHandler_Execute_StoreError(t *testing.T) {
	visits := &fakeVisits{err: store.ErrQueryFailed}
	h, _ := createTestHandler(t, visits, nil, nil)

	_, err := h.Execute(context.Background())
	assert.ErrorIs(t, err, store.ErrQueryFailed)
}

func TestHandler_RunWithoutChannels(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakeVisits{}, nil, nil, logger.NewTestLogger(t))

	done := make(chan struct{})
	go func() {
		h.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately without channels")
	}
}

func TestHandler_RunStopsOnCancel(t *testing.T) {
	visits := &fakeVisits{due: []store.DueVisit{dueVisit("p1", "ana@example.com")}}
	h, _ := createTestHandler(t, visits, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		visits.mu.Lock()
		defer visits.mu.Unlock()
		return len(visits.marked) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

// ==========================
// Helpers
// ==========================

func TestRenderTemplate(t *testing.T) {
	got := renderTemplate("Hi {{name}}, {{missing}}see {{title}}", map[string]interface{}{"name": "Ana", "title": 3})
	assert.Equal(t, "Hi Ana, see 3", got)
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.ReminderConfig{})
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Lookahead)
	assert.Equal(t, 50, cfg.BatchSize)

	cfg = LoadConfig(config.ReminderConfig{Enabled: true, Interval: 30, Lookahead: 90, BatchSize: 5})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 90*time.Minute, cfg.Lookahead)
	assert.Equal(t, 5, cfg.BatchSize)
}
