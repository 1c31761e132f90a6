package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldDeliveryTag  = "delivery_tag"
	FieldDuration     = "duration_ms"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldOperation    = "operation"
	FieldYear         = "year"
	FieldMonth        = "month"
	FieldUserID       = "user_id"
	FieldReportID     = "report_id"
	FieldKeyID        = "key_id"
	FieldKeyName      = "key_name"
	FieldTransactions = "transactions"
	FieldAttempt      = "attempt"
	FieldEventKind    = "event_kind"
	FieldRequestID    = "request_id"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentCalculation = "calculation"
	ComponentSignature   = "signature"
	ComponentKeyRegistry = "key_registry"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentFeed        = "feed"
	ComponentCache       = "cache"
	ComponentSecurity    = "security"
)

// Operations defines standard operation names
const (
	OpCalculate = "calculate"
	OpSign      = "sign"
	OpVerify    = "verify"
	OpReconcile = "reconcile"
	OpFetch     = "fetch"
	OpSave      = "save"
	OpRead      = "read"
	OpDelete    = "delete"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeCrypto        = "crypto_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeBusy          = "busy_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(t string) LogFields {
	f[FieldErrorType] = t
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the user the operation runs for
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithReport adds report identification fields
func (f LogFields) WithReport(reportID string, transactions int) LogFields {
	f[FieldReportID] = reportID
	f[FieldTransactions] = transactions
	return f
}

// WithKey adds signing key fields
func (f LogFields) WithKey(keyID, name string) LogFields {
	f[FieldKeyID] = keyID
	if name != "" {
		f[FieldKeyName] = name
	}
	return f
}

// WithResult adds outcome fields
func (f LogFields) WithResult(durationMs int64, success bool) LogFields {
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog. Keys are sorted so
// that log lines are stable.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
