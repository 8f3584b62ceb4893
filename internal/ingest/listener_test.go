package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwon789/adaptive-filter/internal/fusion"
)

func TestHandleDatagramDispatches(t *testing.T) {
	t.Parallel()

	staging := fusion.NewStaging()
	l := NewUDPListener(UDPListenerConfig{
		Router: NewRouter(staging, RouterConfig{}),
	})

	wire := `{"op":"publish","topic":"odom","msg":{
		"header":{"stamp":{"sec":10}},
		"twist":{"twist":{"linear":{"x":0.7},"angular":{"z":0.1}},
			"covariance":[0.01,0,0,0,0,0, 0,0,0,0,0,0, 0,0,0,0,0,0,
				0,0,0,0,0,0, 0,0,0,0,0,0, 0,0,0,0,0,0.001]}}}`
	require.NoError(t, l.handleDatagram([]byte(wire)))

	m, ok := staging.Wheel.Take()
	require.True(t, ok, "wheel slot should hold the dispatched measurement")
	assert.Equal(t, 0.7, m.Forward)
	assert.Equal(t, 0.1, m.YawRate)
	assert.Equal(t, uint64(1), l.Stats().Datagrams)
	assert.Equal(t, uint64(0), l.Stats().DecodeErrors)
}

func TestHandleDatagramMalformed(t *testing.T) {
	t.Parallel()

	l := NewUDPListener(UDPListenerConfig{
		Router: NewRouter(fusion.NewStaging(), RouterConfig{}),
	})

	err := l.handleDatagram([]byte("not json"))
	assert.Error(t, err)
	assert.Equal(t, uint64(1), l.Stats().DecodeErrors)
}

func TestHandleDatagramUnknownTopic(t *testing.T) {
	t.Parallel()

	staging := fusion.NewStaging()
	router := NewRouter(staging, RouterConfig{})
	l := NewUDPListener(UDPListenerConfig{Router: router})

	require.NoError(t, l.handleDatagram([]byte(`{"op":"publish","topic":"battery","msg":{}}`)))

	assert.Equal(t, uint64(1), router.Stats().Unknown)
	assert.False(t, staging.Inertial.Fresh())
	assert.False(t, staging.Wheel.Fresh())
	assert.False(t, staging.Range.Fresh())
}

func TestListenerReceivesOverUDP(t *testing.T) {
	t.Parallel()

	staging := fusion.NewStaging()
	l := NewUDPListener(UDPListenerConfig{
		Address: "127.0.0.1:0",
		Router:  NewRouter(staging, RouterConfig{}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Start(ctx) }()

	// Wait for the socket to bind.
	var addr net.Addr
	deadline := time.Now().Add(2 * time.Second)
	for addr = l.LocalAddr(); addr == nil; addr = l.LocalAddr() {
		if time.Now().After(deadline) {
			t.Fatal("listener did not bind")
		}
		time.Sleep(time.Millisecond)
	}

	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	wire := `{"op":"publish","topic":"imu/data","msg":{
		"orientation":{"x":0,"y":0,"z":0,"w":1},
		"angular_velocity":{"z":0.25}}}`
	_, err = conn.Write([]byte(wire))
	require.NoError(t, err)

	for !staging.Inertial.Fresh() {
		if time.Now().After(deadline) {
			t.Fatal("measurement never arrived")
		}
		time.Sleep(time.Millisecond)
	}

	m, ok := staging.Inertial.Take()
	require.True(t, ok)
	assert.Equal(t, 0.25, m.AngularRate[2])
	assert.GreaterOrEqual(t, l.Stats().Datagrams, uint64(1))

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
