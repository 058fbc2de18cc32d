package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	id := NewULID()
	assert.False(t, id.IsZero())
	assert.NotEqual(t, id, NewULID())
	assert.WithinDuration(t, time.Now(), id.Time(), time.Second)
}

func TestParseULID(t *testing.T) {
	original := NewULID()

	parsed, err := ParseULID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)

	_, err = ParseULID("not-a-valid-ulid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ULID")

	_, err = ParseULID("")
	assert.Error(t, err)
}

func TestULID_Value(t *testing.T) {
	var zero ULID
	val, err := zero.Value()
	require.NoError(t, err)
	assert.Nil(t, val)

	id := NewULID()
	val, err = id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), val)
}

func TestULID_Scan(t *testing.T) {
	validID := NewULID()
	validStr := validID.String()

	tests := []struct {
		name      string
		input     any
		expected  ULID
		expectErr bool
	}{
		{"nil sets zero", nil, ULID{}, false},
		{"valid string", validStr, validID, false},
		{"empty string sets zero", "", ULID{}, false},
		{"valid []byte", []byte(validStr), validID, false},
		{"empty []byte sets zero", []byte{}, ULID{}, false},
		{"invalid string", "bad-ulid", ULID{}, true},
		{"unsupported type int", 12345, ULID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u ULID
			err := u.Scan(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u)
		})
	}
}

func TestULID_JSON(t *testing.T) {
	type wrapper struct {
		ID ULID `json:"id"`
	}

	id := NewULID()
	data, err := json.Marshal(wrapper{ID: id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(data))

	var parsed wrapper
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, id, parsed.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":""}`), &parsed))
	assert.True(t, parsed.ID.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"id":"not-a-ulid"}`), &parsed))
}

func TestStringList(t *testing.T) {
	t.Run("value of nil list is empty array", func(t *testing.T) {
		val, err := StringList(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", val)
	})

	t.Run("scan", func(t *testing.T) {
		tests := []struct {
			name      string
			input     any
			expected  StringList
			expectErr bool
		}{
			{"nil", nil, StringList{}, false},
			{"string", `["a","b"]`, StringList{"a", "b"}, false},
			{"bytes", []byte(`["c"]`), StringList{"c"}, false},
			{"empty", "", StringList{}, false},
			{"malformed", "[", nil, true},
			{"unsupported", 3, nil, true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var l StringList
				err := l.Scan(tt.input)
				if tt.expectErr {
					assert.Error(t, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.expected, l)
			})
		}
	})

	t.Run("contains", func(t *testing.T) {
		l := StringList{"lesson-1", "lesson-2"}
		assert.True(t, l.Contains("lesson-2"))
		assert.False(t, l.Contains("lesson-3"))
	})
}
