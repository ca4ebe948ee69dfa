package logger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang-options/pkg/common"

	"go.uber.org/zap/zapcore"
)

// AlertSink receives rendered alert messages.
type AlertSink interface {
	SendAlert(ctx context.Context, message string) error
}

type AlertCore struct {
	core     zapcore.Core
	sink     AlertSink
	minLevel zapcore.Level
}

func NewAlertCore(core zapcore.Core, sink AlertSink, minLevel zapcore.Level) *AlertCore {
	return &AlertCore{core: core, sink: sink, minLevel: minLevel}
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		core:     a.core.With(fields),
		sink:     a.sink,
		minLevel: a.minLevel,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !a.Enabled(entry.Level) {
		return checkedEntry
	}
	checkedEntry = a.core.Check(entry, checkedEntry)
	if entry.Level >= a.minLevel {
		checkedEntry = checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

// Write only sends the alert. The wrapped core registers itself in Check and
// writes the entry on its own.
func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if entry.Level >= a.minLevel && shouldAlert(fields) {
		message := FormatAlert(entry, fields)
		go func() {
			_ = a.sink.SendAlert(context.Background(), message)
		}()
	}
	return nil
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func shouldAlert(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT && f.Type == zapcore.BoolType && f.Integer == 1 {
			return true
		}
	}
	return false
}

// FormatAlert renders an entry and its fields as a plain text alert.
func FormatAlert(entry zapcore.Entry, fields []zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT {
			continue
		}
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("🚨 %s alert\n\n%s\n\n", entry.Level.CapitalString(), entry.Message))
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("• %s: %v\n", k, enc.Fields[k]))
	}
	sb.WriteString(fmt.Sprintf("\n%s", entry.Time.Format("2006-01-02 15:04:05")))
	return sb.String()
}
