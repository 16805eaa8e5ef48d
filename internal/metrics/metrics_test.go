package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(EntriesProcessed.WithLabelValues("whatsapp", OutcomeFailed))
	RecordEntry("whatsapp", OutcomeFailed)
	assert.Equal(t, before+1, testutil.ToFloat64(EntriesProcessed.WithLabelValues("whatsapp", OutcomeFailed)))

	before = testutil.ToFloat64(PushDeliveries.WithLabelValues(PushGone))
	RecordPush(PushGone)
	RecordPush(PushGone)
	assert.Equal(t, before+2, testutil.ToFloat64(PushDeliveries.WithLabelValues(PushGone)))

	before = testutil.ToFloat64(DuplicatesSkipped.WithLabelValues("facebook"))
	RecordDuplicate("facebook")
	assert.Equal(t, before+1, testutil.ToFloat64(DuplicatesSkipped.WithLabelValues("facebook")))
}
