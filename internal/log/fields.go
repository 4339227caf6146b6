package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldStep          = "step"
	FieldOwnerID       = "owner_id"
	FieldWalletID      = "wallet_id"
	FieldTransactionID = "transaction_id"
	FieldObligationID  = "obligation_id"
	FieldAmount        = "amount"
	FieldDelta         = "delta"
	FieldEventKind     = "event_kind"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentLedger       = "ledger"
	ComponentWallet       = "wallet"
	ComponentObligation   = "obligation"
	ComponentBudget       = "budget"
	ComponentGoal         = "goal"
	ComponentNotification = "notification"
	ComponentImport       = "import"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentFX           = "fx"
	ComponentCache        = "cache"
	ComponentReconcile    = "reconcile"
	ComponentRateLimit    = "rate_limit"
	ComponentBackend      = "backend"
	ComponentCategory     = "category"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpBatch     = "create_batch"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpTransfer  = "transfer"
	OpRecompute = "recompute"
	OpPay       = "pay"
	OpImport    = "import"
	OpMirror    = "mirror"
	OpPublish   = "publish"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithStep names the sub-step of a unit of work that failed.
func (f LogFields) WithStep(step string) LogFields {
	f[FieldStep] = step
	return f
}

func (f LogFields) WithOwner(ownerID string) LogFields {
	if ownerID != "" {
		f[FieldOwnerID] = ownerID
	}
	return f
}

// WithWallet adds the wallet id and, when non-zero, the balance delta.
func (f LogFields) WithWallet(walletID string, delta decimal.Decimal) LogFields {
	if walletID == "" {
		return f
	}
	f[FieldWalletID] = walletID
	if !delta.IsZero() {
		f[FieldDelta] = delta.String()
	}
	return f
}

func (f LogFields) WithTransaction(id string, amount decimal.Decimal) LogFields {
	f[FieldTransactionID] = id
	f[FieldAmount] = amount.String()
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// With adds an arbitrary field.
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
