package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	require.Equal(t, "certdesk:verify:C-00100", Key("C-00100"))
}
