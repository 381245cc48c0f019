package pagestate

// Fields carries the structured context of a store event: the storage key,
// the page key, record counts and the error when there is one.
type Fields map[string]any

// Logger receives the store's own events: snapshot load and self-heal,
// persist failures and resets. Page reads and writes are never logged.
// Adapters for zap and logrus live under log/. A nil Options.Logger
// disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger drops every event.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
