// ABOUTME: Tests for notifier fan-out and zap log levels.
package automation_test

import (
	"context"
	"testing"

	"github.com/2389-research/funnel/board/automation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifierLevels(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	n := automation.LogNotifier{Logger: zap.New(obs)}
	n.Notify(context.Background(), automation.Notification{Role: automation.RoleSuccess, Message: "delivered"})
	n.Notify(context.Background(), automation.Notification{Role: automation.RoleError, Message: "failed"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Errorf("levels: %v, %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["role"] != "error" {
		t.Errorf("role field: %v", entries[1].ContextMap())
	}
}

func TestMultiNotifierFansOut(t *testing.T) {
	var a, b int
	m := automation.MultiNotifier{
		automation.NotifierFunc(func(context.Context, automation.Notification) { a++ }),
		nil,
		automation.NotifierFunc(func(context.Context, automation.Notification) { b++ }),
	}
	m.Notify(context.Background(), automation.Notification{Message: "x"})
	if a != 1 || b != 1 {
		t.Errorf("calls: a=%d b=%d", a, b)
	}
}
