package analysis

// StatusSink receives progress updates during an analysis run. Progress is
// a 0-100 percentage; step is the coarse phase number, with -1 marking an
// error update.
type StatusSink interface {
	Update(message string, progress int, stepName string, step int)
}

// NopSink discards updates. Used by callers that don't track progress.
type NopSink struct{}

func (NopSink) Update(string, int, string, int) {}
