package orchestrator

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
)

// logTee captures one output stream of a service, publishing each complete
// line to the event log (where log-marker probes scan it) and echoing it
// through the orchestrator's logger. Services never write log files of
// their own; everything flows through here.
type logTee struct {
	log     *EventLog
	logger  *zap.Logger
	service string
	stream  string // "stdout" or "stderr"

	mu  sync.Mutex
	buf bytes.Buffer
}

func newLogTee(log *EventLog, logger *zap.Logger, service, stream string) *logTee {
	return &logTee{log: log, logger: logger, service: service, stream: stream}
}

func (t *logTee) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf.Write(p)
	for {
		line, err := t.buf.ReadString('\n')
		if err != nil {
			// Partial line — keep it buffered until the newline arrives.
			t.buf.WriteString(line)
			break
		}
		t.emit(line[:len(line)-1])
	}
	return len(p), nil
}

func (t *logTee) emit(line string) {
	t.log.Publish(Event{
		Type:    EventServiceLog,
		Service: t.service,
		Log:     &LogEntry{Stream: t.stream, Line: line},
	})
	t.logger.Debug(line, zap.String("service", t.service), zap.String("stream", t.stream))
}
