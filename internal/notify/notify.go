package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/model"
)

type Audience string

const (
	AudienceUser       Audience = "user"
	AudienceModerators Audience = "moderators"
)

type Notification struct {
	ID          string
	Kind        string
	Audience    Audience
	RecipientID string
	Title       string
	Message     string
	Metadata    map[string]interface{}
}

// Notifier delivers in-app notifications. Implementations are external
// collaborators; the core treats delivery as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EmailSender delivers status emails (transcript ready / failed).
type EmailSender interface {
	SendStatusEmail(ctx context.Context, recipientID, subject, body string) error
}

// Dispatcher decouples notification delivery from the calling pipeline:
// every send runs on its own goroutine, failures are logged and swallowed,
// and a panicking sink can never take down a discovery run.
type Dispatcher struct {
	notifier Notifier
	email    EmailSender
	log      *logrus.Entry
}

func NewDispatcher(notifier Notifier, email EmailSender, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		email:    email,
		log:      log.WithField("module", "notify"),
	}
}

// NotifyAsync fires a notification without blocking the caller.
func (d *Dispatcher) NotifyAsync(n Notification) {
	if d == nil || d.notifier == nil {
		return
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.WithField("notification", n.Kind).Errorf("notifier panicked: %v", r)
			}
		}()
		if err := d.notifier.Notify(context.Background(), n); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"kind":      n.Kind,
				"recipient": n.RecipientID,
			}).Warn("notification delivery failed")
		}
	}()
}

// EmailAsync fires a status email without blocking the caller.
func (d *Dispatcher) EmailAsync(recipientID, subject, body string) {
	if d == nil || d.email == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Errorf("email sender panicked: %v", r)
			}
		}()
		if err := d.email.SendStatusEmail(context.Background(), recipientID, subject, body); err != nil {
			d.log.WithError(err).WithField("recipient", recipientID).Warn("status email delivery failed")
		}
	}()
}

// connectionReasons maps edge types to the human-readable reason included in
// new-connection notifications.
var connectionReasons = map[model.ConnectionType]string{
	model.TypeSemanticStrong:   "their stories are strongly similar",
	model.TypeSemanticModerate: "their stories are similar",
	model.TypeSemanticWeak:     "their stories share some similarities",
	model.TypeSameEvent:        "they describe the same event",
	model.TypeSameRelation:     "the testifiers had the same relation to an event",
	model.TypeSameLocation:     "they describe the same location",
	model.TypeSharedRelative:   "they mention the same person",
	model.TypeSameDay:          "they describe the same day",
	model.TypeSameMonth:        "they describe the same month",
	model.TypeSameYear:         "they describe the same year",
	model.TypeOverlappingDates: "their time periods overlap",
	model.TypeNearbyDates:      "they describe events close in time",
	model.TypeHybrid:           "their stories agree on both content and context",
}

// ConnectionReason returns the display reason for an edge type.
func ConnectionReason(typ model.ConnectionType) string {
	if reason, ok := connectionReasons[typ]; ok {
		return reason
	}
	return "they appear to be related"
}

// ConnectionMessage renders the user-facing text for a discovered
// connection, including the score as a percentage.
func ConnectionMessage(typ model.ConnectionType, score float64) string {
	return fmt.Sprintf("We found a related testimony (%.0f%% match) because %s.", score*100, ConnectionReason(typ))
}
