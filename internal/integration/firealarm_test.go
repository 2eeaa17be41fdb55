package integration

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/domain/access"
	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/service/callpoint"
	"github.com/oshokin/building-safety/internal/service/common"
	doorsvc "github.com/oshokin/building-safety/internal/service/door"
	"github.com/oshokin/building-safety/internal/service/firealarm"
)

func startFireAlarm(t *testing.T, overseerAddr string) *firealarm.Service {
	t.Helper()

	cfg := &config.FireAlarm{
		Common:        config.Common{OverseerAddress: overseerAddr, Timeout: testTimeout},
		ListenAddress: "127.0.0.1:0",
		Threshold:     50,
	}
	require.NoError(t, cfg.Validate())

	svc, err := firealarm.New(context.Background(), cfg)
	require.NoError(t, err)

	start(t, svc)

	return svc
}

func registeredDoors(svc *firealarm.Service) int {
	doors, _ := svc.Unit().Snapshot(context.Background())["doors"].([]any)

	return len(doors)
}

// TestFireAlarm_ThirdDetectionBroadcastsOnce sends hot readings one by one
// and checks that only the third one opens the registered door, once.
func TestFireAlarm_ThirdDetectionBroadcastsOnce(t *testing.T) {
	t.Parallel()

	ov := startOverseer(t, access.Policy{})
	doorAddr, commands := emergencyDoor(t)

	require.NoError(t, common.Announce(context.Background(), ov.Address(), testTimeout,
		protocol.DoorHello{ID: 1, Address: doorAddr, Mode: door.FailSafe}))

	fa := startFireAlarm(t, ov.Address())
	require.Eventually(t, func() bool { return registeredDoors(fa) == 1 }, testTimeout, 10*time.Millisecond)

	sensor, err := common.ListenUDP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sensor.Close() })

	hot := func() {
		reading := protocol.Temperature{
			Timestamp: time.Now(),
			Value:     60,
			OriginID:  7,
			Path:      []netip.AddrPort{common.LocalEndpoint(sensor)},
		}
		require.NoError(t, common.SendDatagram(sensor, fa.Address(), reading))
	}

	hot()
	hot()
	expectNone(t, commands, 200*time.Millisecond)
	require.False(t, fa.Unit().Active(), "two detections stay below the minimum")

	hot()

	select {
	case got := <-commands:
		require.Equal(t, string(door.CommandOpenEmergency), got)
	case <-time.After(testTimeout):
		t.Fatal("door never received OPEN_EMERG")
	}

	require.True(t, fa.Unit().Active())

	hot()
	expectNone(t, commands, 200*time.Millisecond)
}

// TestFireAlarm_LateDoorOpensImmediately triggers the alarm from a call
// point, then brings up a fail-safe door that must be opened on registration.
func TestFireAlarm_LateDoorOpensImmediately(t *testing.T) {
	t.Parallel()

	ov := startOverseer(t, access.Policy{})
	fa := startFireAlarm(t, ov.Address())

	cpCfg := &config.CallPoint{
		FireAlarmAddress: fa.Address().String(),
		ResendDelay:      50 * time.Millisecond,
	}
	require.NoError(t, cpCfg.Validate())

	cp, err := callpoint.New(context.Background(), cpCfg)
	require.NoError(t, err)
	start(t, cp)

	require.NoError(t, cp.CallPoint().SetActive(context.Background(), true))
	require.Eventually(t, fa.Unit().Active, testTimeout, 10*time.Millisecond)
	require.NoError(t, cp.CallPoint().SetActive(context.Background(), false))

	doorCfg := &config.Door{
		Common:        config.Common{OverseerAddress: ov.Address(), Timeout: testTimeout},
		ID:            4,
		ListenAddress: "127.0.0.1:0",
		Mode:          door.FailSafe,
		ActuatorDelay: 10 * time.Millisecond,
	}
	require.NoError(t, doorCfg.Validate())

	d, err := doorsvc.New(context.Background(), doorCfg)
	require.NoError(t, err)
	start(t, d)

	require.Eventually(t, func() bool {
		s := d.Controller().Snapshot(context.Background())

		return s["status"] == door.Open.String() && s["emergency"] == door.EmergencyOpen.String()
	}, testTimeout, 10*time.Millisecond)
}
