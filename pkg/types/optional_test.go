package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type patch struct {
	Name  Optional[string] `json:"name"`
	Phone Optional[string] `json:"phone"`
	Notes Optional[string] `json:"notes"`
}

func TestOptional_DistinguishesAbsentFromNull(t *testing.T) {
	var p patch
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Ana","phone":null}`), &p))

	name, ok := p.Name.Get()
	require.True(t, ok)
	require.Equal(t, "Ana", name)

	require.True(t, p.Phone.Set)
	require.Empty(t, p.Phone.Value)

	require.False(t, p.Notes.Set)
}

func TestOptional_Apply(t *testing.T) {
	dst := "old"
	Optional[string]{}.Apply(&dst)
	require.Equal(t, "old", dst)

	Some("new").Apply(&dst)
	require.Equal(t, "new", dst)

	Some("").Apply(&dst)
	require.Empty(t, dst)
}

func TestOptional_InvalidJSON(t *testing.T) {
	var p patch
	require.Error(t, json.Unmarshal([]byte(`{"name":12}`), &p))
}
