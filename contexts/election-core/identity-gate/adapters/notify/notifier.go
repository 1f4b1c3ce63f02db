package notify

import (
	"context"
	"log/slog"
	"sync"

	"electra/contexts/election-core/identity-gate/ports"
)

// LogNotifier stands in for the SMS/email provider. Delivery gets logged so
// operators can relay codes manually in dev deployments.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(_ context.Context, identity string, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification dispatched",
		"event", "identity_notification_dispatched",
		"module", "election-core/identity-gate",
		"layer", "adapter",
		"identity", identity,
		"message", message,
	)
	return nil
}

// RecordingNotifier captures deliveries for tests, with optional injected
// failure to exercise the non-fatal delivery path.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string
	fail     error
}

func (n *RecordingNotifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = err
}

func (n *RecordingNotifier) Send(_ context.Context, _ string, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.messages = append(n.messages, message)
	return nil
}

func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

var _ ports.Notifier = LogNotifier{}
var _ ports.Notifier = (*RecordingNotifier)(nil)
