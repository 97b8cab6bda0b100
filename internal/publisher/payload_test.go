package publisher

import (
	"testing"
	"time"

	"cdr-service/internal/calls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch() []calls.Transport {
	start := time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)
	return []calls.Transport{{
		CallType:       calls.CallTypeOutgoing,
		ServicedMSISDN: "79110000000",
		OtherMSISDN:    "79110000001",
		StartDateTime:  calls.LocalDateTime(start),
		FinishDateTime: calls.LocalDateTime(start),
	}}
}

func TestEncoder_EncodesValidBatch(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)

	body, err := enc.Encode(sampleBatch())
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"callType":"02",
		"servicedMsisdn":"79110000000",
		"otherMsisdn":"79110000001",
		"startDateTime":"2024-03-01T23:59:59",
		"finishDateTime":"2024-03-01T23:59:59"
	}]`, string(body))
}

func TestEncoder_RejectsEmptyBatch(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)

	_, err = enc.Encode(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestEncoder_RejectsUnknownCallType(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)

	batch := sampleBatch()
	batch[0].CallType = "03"
	_, err = enc.Encode(batch)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestEncoder_ValidateRejectsForeignShape(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)

	cases := map[string]string{
		"not an array":   `{"callType":"01"}`,
		"missing field":  `[{"callType":"01","servicedMsisdn":"1","otherMsisdn":"2","startDateTime":"2024-03-01T00:00:00"}]`,
		"offset in time": `[{"callType":"01","servicedMsisdn":"1","otherMsisdn":"2","startDateTime":"2024-03-01T00:00:00Z","finishDateTime":"2024-03-01T00:00:01"}]`,
		"extra id field": `[{"id":1,"callType":"01","servicedMsisdn":"1","otherMsisdn":"2","startDateTime":"2024-03-01T00:00:00","finishDateTime":"2024-03-01T00:00:01"}]`,
		"malformed json": `[{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, enc.Validate([]byte(body)), ErrInvalidPayload)
		})
	}
}
