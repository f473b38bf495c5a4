package heapstash

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around logging stack
// (see log/zap, log/logrus, log/slog). If Logger is nil in Options, logging
// is disabled.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// opLog stamps every line with the operation that emitted it.
type opLog struct {
	l  Logger
	op string
}

func (c *Cache[V]) logFor(op string) opLog { return opLog{l: c.log, op: op} }

func (o opLog) fields(f Fields) Fields {
	out := make(Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out["op"] = o.op
	return out
}

func (o opLog) debug(msg string, f Fields) { o.l.Debug(msg, o.fields(f)) }
func (o opLog) warn(msg string, f Fields)  { o.l.Warn(msg, o.fields(f)) }
