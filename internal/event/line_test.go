package event

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLine_Basic(t *testing.T) {
	line := []byte(`{"event_id": 42, "event_timestamp": 1728300000, "event_type": "MATCH", "event_data": {"match_id": "m1"}}`)

	env, err := DecodeLine(line)
	require.NoError(t, err)
	assert.Equal(t, "42", env.ID)
	assert.Equal(t, time.Unix(1728300000, 0).UTC(), env.Timestamp)
	assert.Equal(t, KindMatch, env.Kind)
	assert.Equal(t, "MATCH", env.Tag)
	assert.JSONEq(t, `{"match_id": "m1"}`, string(env.Data))
}

func TestDecodeLine_StringIDAndFractionalTimestamp(t *testing.T) {
	env, err := DecodeLine([]byte(`{"event_id": "abc", "event_timestamp": 100.9, "event_type": "x", "event_data": {}}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", env.ID)
	assert.Equal(t, int64(100), env.Timestamp.Unix())
	assert.Equal(t, KindNone, env.Kind)
}

func TestDecodeLine_NullTypeIsNeutral(t *testing.T) {
	env, err := DecodeLine([]byte(`{"event_id": 1, "event_timestamp": 1, "event_type": null, "event_data": {}}`))
	require.NoError(t, err)
	assert.Equal(t, KindNone, env.Kind)
	assert.Equal(t, "", env.Tag)
}

func TestDecodeLine_MissingFields(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{"no id", `{"event_timestamp": 1, "event_type": "match", "event_data": {}}`, "event_id"},
		{"null id", `{"event_id": null, "event_timestamp": 1, "event_type": "match", "event_data": {}}`, "event_id"},
		{"no timestamp", `{"event_id": 1, "event_type": "match", "event_data": {}}`, "event_timestamp"},
		{"no type", `{"event_id": 1, "event_timestamp": 1, "event_data": {}}`, "event_type"},
		{"no data", `{"event_id": 1, "event_timestamp": 1, "event_type": "match"}`, "event_data"},
		{"null data", `{"event_id": 1, "event_timestamp": 1, "event_type": "match", "event_data": null}`, "event_data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLine([]byte(tt.line))
			var mf *MissingFieldError
			require.True(t, errors.As(err, &mf), "got %v", err)
			assert.Equal(t, tt.field, mf.Field)
		})
	}
}

func TestDecodeLine_Malformed(t *testing.T) {
	lines := []string{
		`not json`,
		`[1, 2, 3]`,
		`{"event_id": 1, "event_timestamp": "yesterday", "event_type": "match", "event_data": {}}`,
		`{"event_id": 1, "event_timestamp": 1, "event_type": 7, "event_data": {}}`,
		`{"event_id": {}, "event_timestamp": 1, "event_type": "match", "event_data": {}}`,
	}

	for _, line := range lines {
		_, err := DecodeLine([]byte(line))
		assert.ErrorIs(t, err, ErrMalformed, line)
	}
}
