// internal/workers/visit-reminder/handler.go
package visitreminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"property-tracker/internal/common/logger"
	"property-tracker/internal/common/metrics"
	"property-tracker/internal/store"
)

const (
	TaskType = "visit-reminder"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

// VisitStore is the part of the property store the worker needs.
type VisitStore interface {
	DueForReminder(ctx context.Context, from, to time.Time, limit int) ([]store.DueVisit, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

type EmailSender interface {
	SendText(ctx context.Context, to, subject, body string) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, subject, message string) error
}

// Handler sends one reminder per upcoming visit. Either channel may be nil.
type Handler struct {
	config *Config
	store  VisitStore
	email  EmailSender
	events EventPublisher
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, visits VisitStore, email EmailSender, events EventPublisher, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  visits,
		email:  email,
		events: events,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a pass every interval until ctx is done.
func (h *Handler) Run(ctx context.Context) {
	if h.email == nil && h.events == nil {
		h.logger.Warn("no reminder channel configured, worker not started", nil)
		return
	}

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	h.logger.Info("visit reminder worker started", map[string]interface{}{
		"interval":  h.config.Interval.String(),
		"lookahead": h.config.Lookahead.String(),
	})

	for {
		h.runOnce(ctx)
		select {
		case <-ctx.Done():
			h.logger.Info("visit reminder worker stopped", nil)
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx)
	if err != nil {
		h.logger.Error("reminder pass failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if output.Due > 0 {
		h.logger.Info("reminder pass completed", map[string]interface{}{
			"due":       output.Due,
			"emailed":   output.Emailed,
			"published": output.Published,
			"failed":    output.Failed,
		})
	}
}

// Execute runs a single pass. A visit is stamped as reminded once at least
// one channel delivered it; otherwise it is picked up again next pass.
func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	now := h.now()
	due, err := h.store.DueForReminder(ctx, now, now.Add(h.config.Lookahead), h.config.BatchSize)
	if err != nil {
		return nil, err
	}

	output := &Output{Due: len(due)}
	for _, visit := range due {
		delivered := false

		if h.email != nil && visit.OwnerEmail != "" {
			if err := h.sendEmail(ctx, visit); err != nil {
				h.logger.Error("reminder email failed", map[string]interface{}{
					"propertyId": visit.Property.ID,
					"error":      err.Error(),
				})
			} else {
				output.Emailed++
				delivered = true
			}
		}

		if h.events != nil {
			if err := h.publish(ctx, visit); err != nil {
				h.logger.Error("reminder event failed", map[string]interface{}{
					"propertyId": visit.Property.ID,
					"error":      err.Error(),
				})
			} else {
				output.Published++
				delivered = true
			}
		}

		if !delivered {
			output.Failed++
			continue
		}
		if err := h.store.MarkReminded(ctx, visit.Property.ID, now); err != nil {
			h.logger.Error("failed to stamp reminder", map[string]interface{}{
				"propertyId": visit.Property.ID,
				"error":      err.Error(),
			})
		}
	}
	return output, nil
}

func (h *Handler) sendEmail(ctx context.Context, visit store.DueVisit) error {
	data := templateData(visit)
	err := h.email.SendText(ctx, visit.OwnerEmail, renderTemplate(subjectTemplate, data), renderTemplate(bodyTemplate, data))
	record(ChannelEmail, err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationSendFailed, err)
	}
	return nil
}

func (h *Handler) publish(ctx context.Context, visit store.DueVisit) error {
	p := visit.Property
	event := Event{
		PropertyID:  p.ID,
		GroupName:   visit.GroupName,
		Title:       p.Title,
		Address:     p.Address,
		URL:         p.URL,
		NextVisitAt: formatVisit(p.NextVisitAt),
		OwnerEmail:  visit.OwnerEmail,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = h.events.PublishEvent(ctx, EventType, renderTemplate(subjectTemplate, templateData(visit)), string(body))
	record(ChannelSNS, err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationSendFailed, err)
	}
	return nil
}

func record(channel string, err error) {
	result := ResultSent
	if err != nil {
		result = ResultFailed
	}
	metrics.RemindersSent.WithLabelValues(channel, result).Inc()
}

func templateData(visit store.DueVisit) map[string]interface{} {
	p := visit.Property
	name := visit.OwnerName
	if name == "" {
		name = visit.OwnerEmail
	}
	return map[string]interface{}{
		"name":      name,
		"title":     p.Title,
		"address":   p.Address,
		"groupName": visit.GroupName,
		"visitAt":   formatVisit(p.NextVisitAt),
		"url":       p.URL,
	}
}

func formatVisit(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("Mon 2 Jan 15:04 MST")
}

// renderTemplate replaces {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
