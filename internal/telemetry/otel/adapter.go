package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const auditScope = "signin.audit"

// recordEmitter is the subset of otellog.Logger used by AuditSink.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuditSink forwards audit events to the OTel log pipeline. It satisfies audit.AuditLogger.
type AuditSink struct {
	logger recordEmitter
	nowF   func() time.Time
}

// NewAuditSink returns a sink emitting through provider. A nil provider yields a sink that drops events.
func NewAuditSink(provider *sdklog.LoggerProvider) *AuditSink {
	if provider == nil {
		return &AuditSink{}
	}
	return newAuditSink(provider.Logger(auditScope))
}

func newAuditSink(l recordEmitter) *AuditSink {
	return &AuditSink{logger: l, nowF: func() time.Time { return time.Now().UTC() }}
}

// LogEvent emits one record. The body carries metadata when present.
func (s *AuditSink) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if s == nil || s.logger == nil {
		return
	}
	var rec otellog.Record
	rec.SetTimestamp(s.nowF())
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName(action)
	if metadata != "" {
		rec.SetBody(otellog.StringValue(metadata))
	}
	rec.AddAttributes(
		otellog.String("action", action),
		otellog.String("resource", resource),
	)
	if userID != "" {
		rec.AddAttributes(otellog.String("user_id", userID))
	}
	s.logger.Emit(ctx, rec)
}
