package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier records notifications in the application log. It stands in
// until a real delivery channel (websocket push, APNs) is wired up.
type LogNotifier struct {
	Log *logrus.Entry
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Log.WithFields(logrus.Fields{
		"kind":      n.Kind,
		"audience":  n.Audience,
		"recipient": n.RecipientID,
		"title":     n.Title,
	}).Info(n.Message)
	return nil
}

// LogEmailSender records outbound status emails in the application log.
type LogEmailSender struct {
	Log *logrus.Entry
}

func (l *LogEmailSender) SendStatusEmail(_ context.Context, recipientID, subject, body string) error {
	l.Log.WithFields(logrus.Fields{
		"recipient": recipientID,
		"subject":   subject,
	}).Info(body)
	return nil
}
