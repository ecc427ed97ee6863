package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType represents the type of security event
type EventType string

const (
	EventRateLimitTriggered EventType = "rate_limit_triggered"
	EventRateLimitDegraded  EventType = "rate_limit_degraded"
	EventCSRFViolation      EventType = "csrf_violation"
	EventSuspiciousInput    EventType = "suspicious_input"
)

// Severity is derived from the EventType, never supplied by the caller
type Severity string

const (
	SeverityINFO Severity = "INFO"
	SeverityWARN Severity = "WARN"
	SeverityHIGH Severity = "HIGH"
)

var EventSeverityMap = map[EventType]Severity{
	EventRateLimitDegraded:  SeverityINFO,
	EventRateLimitTriggered: SeverityWARN,
	EventSuspiciousInput:    SeverityWARN,
	EventCSRFViolation:      SeverityHIGH,
}

// SeverityOf returns the severity for an event type, WARN when unknown
func SeverityOf(e EventType) Severity {
	if s, ok := EventSeverityMap[e]; ok {
		return s
	}
	return SeverityWARN
}

// SecurityEvent represents a security-related event to be logged
type SecurityEvent struct {
	Timestamp    time.Time              `json:"timestamp"`
	Event        EventType              `json:"event"`
	Severity     Severity               `json:"severity"`
	SubjectType  string                 `json:"subject_type,omitempty"`  // "ip", "session", "system"
	SubjectValue string                 `json:"subject_value,omitempty"` // hashed unless an ip
	IP           string                 `json:"ip,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Path         string                 `json:"path,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// SecurityLogger writes security events through zap, apart from the
// application log so they can be shipped on their own.
type SecurityLogger struct {
	zapLogger   *zap.Logger
	serviceName string
	environment string
	now         func() time.Time
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *SecurityLogger
)

// NewSecurityLogger wraps an existing zap logger
func NewSecurityLogger(zl *zap.Logger, serviceName, environment string) *SecurityLogger {
	return &SecurityLogger{
		zapLogger:   zl,
		serviceName: serviceName,
		environment: environment,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// InitSecurityLogger builds a production zap logger writing JSON to stdout
// and installs it as the default.
func InitSecurityLogger(serviceName, environment string) *SecurityLogger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	zl, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		zl = zap.NewNop()
	}

	sl := NewSecurityLogger(zl, serviceName, environment)
	SetDefault(sl)
	return sl
}

// SetDefault replaces the logger returned by DefaultLogger
func SetDefault(sl *SecurityLogger) {
	defaultMu.Lock()
	defaultLogger = sl
	defaultMu.Unlock()
}

// DefaultLogger returns the installed logger. Until InitSecurityLogger or
// SetDefault is called, events are discarded.
func DefaultLogger() *SecurityLogger {
	defaultMu.RLock()
	sl := defaultLogger
	defaultMu.RUnlock()
	if sl == nil {
		return NewSecurityLogger(zap.NewNop(), "contact-form-service", Environment())
	}
	return sl
}

// Log logs a security event
func (sl *SecurityLogger) Log(_ context.Context, event SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = sl.now()
	}
	event.Severity = SeverityOf(event.Event)

	level := zapcore.WarnLevel
	switch event.Severity {
	case SeverityINFO:
		level = zapcore.InfoLevel
	case SeverityHIGH:
		level = zapcore.ErrorLevel
	}

	fields := []zap.Field{
		zap.String("service", sl.serviceName),
		zap.String("env", sl.environment),
		zap.String("event", string(event.Event)),
		zap.String("severity", string(event.Severity)),
		zap.Time("occurred_at", event.Timestamp),
	}
	if event.SubjectType != "" {
		fields = append(fields, zap.String("subject_type", event.SubjectType))
	}
	if event.SubjectValue != "" {
		fields = append(fields, zap.String("subject_value", maskValue(event.SubjectType, event.SubjectValue)))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", event.UserAgent))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.Path != "" {
		fields = append(fields, zap.String("path", event.Path))
	}
	if len(event.Details) > 0 {
		detailsJSON, _ := json.Marshal(event.Details)
		fields = append(fields, zap.String("details", string(detailsJSON)))
	}

	sl.zapLogger.Log(level, string(event.Event), fields...)
}

// LogRateLimitTriggered logs a request rejected by the rate limiter
func (sl *SecurityLogger) LogRateLimitTriggered(ctx context.Context, ip, userAgent, requestID, path string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventRateLimitTriggered,
		SubjectType:  "ip",
		SubjectValue: ip,
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Path:         path,
	})
}

// LogCSRFViolation logs a state-changing request with a missing or wrong token
func (sl *SecurityLogger) LogCSRFViolation(ctx context.Context, ip, userAgent, requestID, path, reason string) {
	sl.Log(ctx, SecurityEvent{
		Event:     EventCSRFViolation,
		IP:        ip,
		UserAgent: userAgent,
		RequestID: requestID,
		Path:      path,
		Details:   map[string]interface{}{"reason": reason},
	})
}

// LogSuspiciousInput logs a value no rendered form could have produced
func (sl *SecurityLogger) LogSuspiciousInput(ctx context.Context, sessionID, ip, requestID, field string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventSuspiciousInput,
		SubjectType:  "session",
		SubjectValue: sessionID,
		IP:           ip,
		RequestID:    requestID,
		Details:      map[string]interface{}{"field": field},
	})
}

// Sync flushes any buffered log entries
func (sl *SecurityLogger) Sync() error {
	return sl.zapLogger.Sync()
}

// MaskEmail masks an email for logging (e.g., "j***@example.com")
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return "***" + email[1:]
	}
	return email[:1] + "***" + email[at:]
}

// HashValue returns a short sha256 prefix so values can be correlated
// without being logged.
func HashValue(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8])
}

func maskValue(subjectType, value string) string {
	switch subjectType {
	case "ip":
		return value
	case "email":
		return MaskEmail(value)
	default:
		return HashValue(value)
	}
}

// Environment maps GIN_MODE to a deployment name
func Environment() string {
	if os.Getenv("GIN_MODE") == "release" {
		return "production"
	}
	return "development"
}
