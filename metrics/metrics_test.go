package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/tokscrape/models"
)

func TestRecordResult(t *testing.T) {
	success := testutil.ToFloat64(scrapeResults.WithLabelValues("success", ""))
	timeout := testutil.ToFloat64(scrapeResults.WithLabelValues("failure", models.ErrCodeNavigationTimeout))
	unknown := testutil.ToFloat64(scrapeResults.WithLabelValues("failure", "unknown"))

	RecordResult(models.BatchResult{Success: true})
	RecordResult(models.BatchResult{Error: &models.ErrorDetail{Code: models.ErrCodeNavigationTimeout}})
	RecordResult(models.BatchResult{Error: &models.ErrorDetail{Code: "something else"}})

	assert.Equal(t, success+1, testutil.ToFloat64(scrapeResults.WithLabelValues("success", "")))
	assert.Equal(t, timeout+1, testutil.ToFloat64(scrapeResults.WithLabelValues("failure", models.ErrCodeNavigationTimeout)))
	assert.Equal(t, unknown+1, testutil.ToFloat64(scrapeResults.WithLabelValues("failure", "unknown")))
}

func TestRecordJob(t *testing.T) {
	before := testutil.ToFloat64(jobsTotal.WithLabelValues("batch"))
	RecordJob(models.JobKindBatch)
	assert.Equal(t, before+1, testutil.ToFloat64(jobsTotal.WithLabelValues("batch")))

	RecordJob("weird")
	assert.Equal(t, 1.0, testutil.ToFloat64(jobsTotal.WithLabelValues("unknown")))
}
