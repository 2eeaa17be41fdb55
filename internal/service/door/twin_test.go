package door

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/building-safety/internal/service/common"
)

// twinCompleteViaGRPC waits for a transition and completes it over the shim.
func twinCompleteViaGRPC(t *testing.T, address string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	client, err := common.Dial(ctx, address)
	require.NoError(t, err)

	defer client.Close()

	snapshot, err := client.AwaitTransition(ctx)
	require.NoError(t, err)
	require.Equal(t, "o", snapshot.GetFields()["status"].GetStringValue())

	snapshot, err = client.Complete(ctx)
	require.NoError(t, err)
	require.Equal(t, "O", snapshot.GetFields()["status"].GetStringValue())
}
