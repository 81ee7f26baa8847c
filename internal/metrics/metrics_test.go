package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPersist(t *testing.T) {
	ok := testutil.ToFloat64(batchesPersisted.WithLabelValues("ok"))
	failed := testutil.ToFloat64(batchesPersisted.WithLabelValues("error"))

	RecordPersist(3, nil)
	RecordPersist(0, errors.New("db down"))

	assert.Equal(t, ok+1, testutil.ToFloat64(batchesPersisted.WithLabelValues("ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(batchesPersisted.WithLabelValues("error")))
}

func TestRecordBOSDetection(t *testing.T) {
	before := testutil.ToFloat64(bosDetections.WithLabelValues("hardcoded", "items"))
	RecordBOSDetection("hardcoded", "items")
	assert.Equal(t, before+1, testutil.ToFloat64(bosDetections.WithLabelValues("hardcoded", "items")))
}

func TestCacheAndCatalog(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))

	ObserveCatalog("models", "200", time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(catalogLatency, "equipment_catalog_request_duration_seconds"))
}
