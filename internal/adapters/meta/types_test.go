package meta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPayload_EntriesDecodeIndependently(t *testing.T) {
	raw := `{"object":"page","entry":[
	  {"id":"e1","messaging":[{"sender":{"id":"1"},"timestamp":"not-a-number"}]},
	  {"id":"e2","messaging":{"sender":{"id":"2"}}},
	  {"id":"e3","messaging":[{"sender":{"id":"3"},"timestamp":1718000000003,"message":{"mid":"m_3","sticker_id":"big"}}]},
	  {"id":"e4","messaging":[{"sender":{"id":"4"},"timestamp":1718000000004,"message":{"mid":"m_4","text":"ok"}}]}
	]}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.Len(t, payload.Entry, 4)

	for i, id := range []string{"e1", "e2", "e3"} {
		_, err := DecodeEntry(payload.Entry[i])
		assert.Error(t, err, id)
		assert.Equal(t, id, EntryID(payload.Entry[i]))
	}

	entry, err := DecodeEntry(payload.Entry[3])
	require.NoError(t, err)
	assert.Equal(t, "e4", entry.ID)
	require.Len(t, entry.Messaging, 1)
	assert.Equal(t, "ok", entry.Messaging[0].Message.Text)
}

func TestEntryID_NonObject(t *testing.T) {
	assert.Empty(t, EntryID(json.RawMessage(`"oops"`)))
	assert.Empty(t, EntryID(json.RawMessage(`{"id":42}`)))
}
