package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordsSkippedByReason(t *testing.T) {
	before := testutil.ToFloat64(RecordsSkipped.WithLabelValues(ReasonParse))
	RecordsSkipped.WithLabelValues(ReasonParse).Inc()
	RecordsSkipped.WithLabelValues(ReasonParse).Inc()
	assert.Equal(t, before+2, testutil.ToFloat64(RecordsSkipped.WithLabelValues(ReasonParse)))
}

func TestCommitsLint(t *testing.T) {
	problems, err := testutil.CollectAndLint(Commits)
	assert.NoError(t, err)
	assert.Empty(t, problems)
}
