// ABOUTME: Notification collaborator: reports dispatch outcomes and rejected mutations to users.
// ABOUTME: LogNotifier writes through zap; MultiNotifier fans out to several notifiers.
package automation

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Role classifies a notification.
type Role string

const (
	RoleSuccess Role = "success"
	RoleError   Role = "error"
)

// Notification is a user-facing message.
type Notification struct {
	WorkspaceID ulid.ULID `json:"workspaceId"`
	Role        Role      `json:"role"`
	Message     string    `json:"message"`
	Time        time.Time `json:"time"`
}

// Notifier delivers notifications. Implementations must not block for long;
// nothing is done with a failed notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs n at info level for success and warn level for errors.
func (l LogNotifier) Notify(_ context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = zap.L()
	}
	fields := []zap.Field{
		zap.String("component", "board.notify"),
		zap.Stringer("workspace", n.WorkspaceID),
		zap.String("role", string(n.Role)),
	}
	if n.Role == RoleError {
		logger.Warn(n.Message, fields...)
		return
	}
	logger.Info(n.Message, fields...)
}

// MultiNotifier sends every notification to each of its notifiers in order.
type MultiNotifier []Notifier

// Notify fans n out.
func (m MultiNotifier) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
