package commit

import "expvar"

var (
	metricCommitTotal    = expvar.NewInt("commit_total")
	metricCommitNoop     = expvar.NewInt("commit_noop_total")
	metricCommitErrors   = expvar.NewInt("commit_errors_total")
	metricFanOutWrites   = expvar.NewInt("commit_fanout_writes_total")
	metricFanOutFailures = expvar.NewInt("commit_fanout_failures_total")
)
