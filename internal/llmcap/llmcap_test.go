package llmcap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeminiCapabilityRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiCapability(context.Background(), "", "", "")
	require.Error(t, err)

	var unavailable *ErrUnavailable
	require.ErrorAs(t, err, &unavailable)
	require.Contains(t, unavailable.Error(), "API key")
}

func TestErrorTypesFormatMessages(t *testing.T) {
	require.Equal(t, "llmcap: unavailable: no network", (&ErrUnavailable{Reason: "no network"}).Error())
	require.Equal(t, "llmcap: timeout: CompleteText", (&ErrTimeout{Op: "CompleteText"}).Error())
	require.Equal(t, "llmcap: invalid response: truncated JSON", (&ErrResponseInvalid{Detail: "truncated JSON"}).Error())
}
