package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordLineWritten("loopback")
	RecordLineRead("loopback")
	RecordReadTimeout("serial")
	RecordQuery("loopback", 12*time.Millisecond)
}
