package sink

import "telemetry-logger/services/logfile"

// recordWriter is the append side of the log file manager.
type recordWriter interface {
	Write(p []byte) error
}

// FileSink delivers records to the durable session log.
type FileSink struct {
	w recordWriter
}

func NewFileSink(m *logfile.Manager) *FileSink {
	return &FileSink{w: m}
}

func (s *FileSink) Name() string { return "file" }

// Write appends the record. Manager.Write copies into its pending buffer.
func (s *FileSink) Write(record []byte) error {
	return s.w.Write(record)
}
