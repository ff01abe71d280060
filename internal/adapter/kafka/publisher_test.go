package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiumesicuro/hydro-ingest/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	observed := time.Date(2024, 10, 30, 11, 30, 0, 0, time.UTC)
	ingested := time.Date(2024, 10, 30, 12, 0, 0, 0, time.UTC)

	m := domain.Measurement{
		StationID:    "13040",
		ObservedAt:   observed,
		VariableType: "livello_idro",
		Value:        1.63,
	}

	msg, err := serializeToMessage(m, ingested)
	require.NoError(t, err)

	assert.Equal(t, []byte("13040|2024-10-30T11:30:00Z|livello_idro"), msg.Key)
	assert.Contains(t, string(msg.Value), `"station_id":"13040"`)
	assert.Contains(t, string(msg.Value), `"variable_type":"livello_idro"`)
	assert.Contains(t, string(msg.Value), `"value":1.63`)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "variable_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("livello_idro"), msg.Headers[0].Value)
	assert.Equal(t, "ingested_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(ingested.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_SameKeyForSameTriple(t *testing.T) {
	observed := time.Date(2024, 10, 30, 11, 30, 0, 0, time.UTC)
	m := domain.Measurement{StationID: "7", ObservedAt: observed, VariableType: "livello_idro", Value: 1.0}

	first, err := serializeToMessage(m, time.Now().UTC())
	require.NoError(t, err)

	m.Value = 2.5 // revised value, same natural key
	second, err := serializeToMessage(m, time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
}
