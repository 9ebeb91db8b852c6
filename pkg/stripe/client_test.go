package stripe

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/partsmarket-backend/pkg/config"
)

func TestNewClientValidatesKeysPerEnvironment(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Env: "test", WebhookSecret: "whsec"}, nil)
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{Env: "test", APIKey: "sk_test_123"}, nil)
	require.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{Env: "live", APIKey: "sk_test_123", WebhookSecret: "whsec"}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{Env: "staging", APIKey: "sk_test_123", WebhookSecret: "whsec"}, nil)
	require.ErrorIs(t, err, errInvalidStripeEnv)
}

func TestSigningSecretPerEndpoint(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		Env:                "test",
		APIKey:             "sk_test_123",
		WebhookSecret:      "whsec_main",
		LocalWebhookSecret: " whsec_local ",
	}, nil)
	require.NoError(t, err)

	require.Equal(t, "test", client.Environment())
	require.Equal(t, "whsec_main", client.SigningSecret(EndpointMain))
	require.Equal(t, "whsec_local", client.SigningSecret(EndpointLocal))
	require.Empty(t, client.SigningSecret(EndpointConnect))

	var nilClient *Client
	require.Empty(t, nilClient.SigningSecret(EndpointMain))
}

func TestToMinorUnits(t *testing.T) {
	cents, err := ToMinorUnits(decimal.RequireFromString("149.99"))
	require.NoError(t, err)
	require.Equal(t, int64(14999), cents)

	cents, err = ToMinorUnits(decimal.NewFromInt(20))
	require.NoError(t, err)
	require.Equal(t, int64(2000), cents)

	_, err = ToMinorUnits(decimal.RequireFromString("1.005"))
	require.Error(t, err)

	_, err = ToMinorUnits(decimal.RequireFromString("-1"))
	require.Error(t, err)
}
