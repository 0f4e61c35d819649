package eventlog

// appendNotify returns a channel closed by the next successful Append.
// Callers must obtain it before reading so that an append racing with the
// read is not missed.
func (l *Log) appendNotify() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notifyCh
}
