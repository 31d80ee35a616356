package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/you/medrecsvc/domain"
)

// LogAuditLogger writes audit events as EVENT key=value lines
type LogAuditLogger struct {
	logger *log.Logger
}

// NewLogAuditLogger creates an audit logger. A nil logger uses the standard logger.
func NewLogAuditLogger(logger *log.Logger) *LogAuditLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &LogAuditLogger{logger: logger}
}

// LogEvent implements domain.AuditLogger
func (l *LogAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "EVENT: type=%s success=%t", event.EventType, event.Success)
	if event.AccountID != "" {
		fmt.Fprintf(&b, " account=%s", event.AccountID)
	}
	if event.Role != "" {
		fmt.Fprintf(&b, " role=%s", event.Role)
	}
	if event.Email != "" {
		fmt.Fprintf(&b, " email=%s", event.Email)
	}

	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, event.Metadata[k])
	}

	if event.ErrorMsg != "" {
		fmt.Fprintf(&b, " error=%q", event.ErrorMsg)
	}
	l.logger.Print(b.String())
	return nil
}

var _ domain.AuditLogger = (*LogAuditLogger)(nil)
