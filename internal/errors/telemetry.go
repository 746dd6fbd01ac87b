package errors

import (
	stderrors "errors"
	"sync/atomic"
)

// TelemetryReporter receives every EnhancedError when it is built.
type TelemetryReporter interface {
	ReportError(ee *EnhancedError)
}

type reporterHolder struct {
	reporter TelemetryReporter
}

var globalReporter atomic.Pointer[reporterHolder]

// SetTelemetryReporter installs the reporter. nil disables reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	if r == nil {
		globalReporter.Store(nil)
		return
	}
	globalReporter.Store(&reporterHolder{reporter: r})
}

// reportToTelemetry forwards ee unless it only re-wraps an error that was
// already reported.
func reportToTelemetry(ee *EnhancedError) {
	h := globalReporter.Load()
	if h == nil {
		return
	}
	var inner *EnhancedError
	if ee.Err != nil && stderrors.As(ee.Err, &inner) {
		return
	}
	h.reporter.ReportError(ee)
}
