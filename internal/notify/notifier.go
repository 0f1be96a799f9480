package notify

import (
	"context"

	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
)

// Notifier routes events to recipients. Implementations must be safe
// for concurrent use; the pipeline calls them from multiple goroutines.
type Notifier interface {
	// NotifyRole delivers an event to every user holding a role.
	NotifyRole(ctx context.Context, role domain.Role, event Event) error
	// NotifyUser delivers an event to a single user.
	NotifyUser(ctx context.Context, userID int64, event Event) error
}

// LoggingNotifier writes every notification to the structured log. It
// is the default implementation while delivery fan-out lives in a
// separate service.
type LoggingNotifier struct {
	logger logging.Logger
}

// NewLoggingNotifier creates a logging notifier.
func NewLoggingNotifier(logger logging.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

// NotifyRole implements Notifier.
func (n *LoggingNotifier) NotifyRole(_ context.Context, role domain.Role, event Event) error {
	n.logger.Info("notification",
		logging.String("recipient_role", string(role)),
		logging.String("event_type", string(event.EventType)),
		logging.String("event_id", event.EventID.String()),
		logging.Any("payload", event.Payload))
	return nil
}

// NotifyUser implements Notifier.
func (n *LoggingNotifier) NotifyUser(_ context.Context, userID int64, event Event) error {
	n.logger.Info("notification",
		logging.Int64("recipient_user_id", userID),
		logging.String("event_type", string(event.EventType)),
		logging.String("event_id", event.EventID.String()),
		logging.Any("payload", event.Payload))
	return nil
}
