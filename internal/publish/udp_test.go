package publish

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/cwon789/adaptive-filter/internal/rosmsg"
)

func TestNewSender_Defaults(t *testing.T) {
	sender, err := NewSender(SenderConfig{Address: "localhost:12345"})
	if err != nil {
		t.Fatalf("NewSender failed: %v", err)
	}
	defer sender.Close()

	if sender.odometryTopic != "ekf/odometry" {
		t.Errorf("expected default odometry topic, got %s", sender.odometryTopic)
	}
	if sender.derivedTopic != "ekf/indirect_twist" {
		t.Errorf("expected default derived topic, got %s", sender.derivedTopic)
	}
	if sender.transformTopic != "tf" {
		t.Errorf("expected default transform topic, got %s", sender.transformTopic)
	}
	if sender.mapFrame != "chassis_init" || sender.derivedFrame != "ind_lidar_frame" {
		t.Errorf("unexpected default frames %s / %s", sender.mapFrame, sender.derivedFrame)
	}
}

func TestNewSender_InvalidAddress(t *testing.T) {
	_, err := NewSender(SenderConfig{Address: "localhost:notaport"})
	if err == nil {
		t.Error("expected error for invalid address, got nil")
	}
}

func TestSender_SendsEnvelopes(t *testing.T) {
	// Start a test UDP server to receive the egress datagrams
	serverAddr, err := net.ResolveUDPAddr("udp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to resolve server address: %v", err)
	}
	server, err := net.ListenUDP("udp", serverAddr)
	if err != nil {
		t.Fatalf("failed to start test server: %v", err)
	}
	defer server.Close()

	sender, err := NewSender(SenderConfig{Address: server.LocalAddr().String()})
	if err != nil {
		t.Fatalf("NewSender failed: %v", err)
	}
	defer sender.Close()

	pub := NewPublisher()
	pub.Start()
	defer pub.Stop()
	sub := pub.Subscribe("egress", 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- sender.Run(ctx, sub)
	}()

	pub.PublishEstimate(testEstimate(0.5))
	pub.PublishDerived(testDerived())

	// One estimate produces an odometry and a transform datagram, one
	// derived twist produces a third.
	wantTopics := []string{"ekf/odometry", "tf", "ekf/indirect_twist"}
	for i, wantTopic := range wantTopics {
		server.SetReadDeadline(time.Now().Add(2 * time.Second))
		buffer := make([]byte, 65536)
		n, _, err := server.ReadFromUDP(buffer)
		if err != nil {
			t.Fatalf("failed to read datagram %d: %v", i, err)
		}

		var env rosmsg.Envelope
		if err := json.Unmarshal(buffer[:n], &env); err != nil {
			t.Fatalf("failed to decode envelope %d: %v", i, err)
		}
		if env.Op != rosmsg.OpPublish {
			t.Errorf("expected op=publish, got %s", env.Op)
		}
		if env.Topic != wantTopic {
			t.Errorf("expected topic %s, got %s", wantTopic, env.Topic)
		}

		switch wantTopic {
		case "ekf/odometry":
			var odom rosmsg.Odometry
			if err := json.Unmarshal(env.Msg, &odom); err != nil {
				t.Fatalf("failed to decode odometry: %v", err)
			}
			if odom.Header.FrameID != "chassis_init" {
				t.Errorf("expected frame chassis_init, got %s", odom.Header.FrameID)
			}
			if odom.Twist.Twist.Linear.X != 0.5 {
				t.Errorf("expected vx=0.5, got %v", odom.Twist.Twist.Linear.X)
			}
		case "tf":
			var tf rosmsg.TFMessage
			if err := json.Unmarshal(env.Msg, &tf); err != nil {
				t.Fatalf("failed to decode tf message: %v", err)
			}
			if len(tf.Transforms) != 1 {
				t.Fatalf("expected 1 transform, got %d", len(tf.Transforms))
			}
		case "ekf/indirect_twist":
			var odom rosmsg.Odometry
			if err := json.Unmarshal(env.Msg, &odom); err != nil {
				t.Fatalf("failed to decode derived twist: %v", err)
			}
			if odom.ChildFrameID != "ind_lidar_frame" {
				t.Errorf("expected child frame ind_lidar_frame, got %s", odom.ChildFrameID)
			}
			if odom.Twist.Twist.Linear.X != 1.25 {
				t.Errorf("expected vx=1.25, got %v", odom.Twist.Twist.Linear.X)
			}
		}
	}

	if sent := sender.Stats().Sent; sent != 3 {
		t.Errorf("expected Sent=3, got %d", sent)
	}

	cancel()
	select {
	case err := <-runDone:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSender_RunStopsOnUnsubscribe(t *testing.T) {
	sender, err := NewSender(SenderConfig{Address: "localhost:12345"})
	if err != nil {
		t.Fatalf("NewSender failed: %v", err)
	}
	defer sender.Close()

	pub := NewPublisher()
	pub.Start()
	defer pub.Stop()
	sub := pub.Subscribe("egress", 10)

	runDone := make(chan error, 1)
	go func() {
		runDone <- sender.Run(context.Background(), sub)
	}()

	pub.Unsubscribe("egress")

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("expected nil on closed subscription, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Unsubscribe")
	}
}
