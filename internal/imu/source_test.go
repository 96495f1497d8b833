package imu

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/flowfusion/internal/bus"
)

func TestSourcePublishesParsedFrames(t *testing.T) {
	fixture := strings.Join([]string{
		"100,0.1,0.13,9.81,0,0,0,1",
		"garbage line",
		"200,0.2,0.13,9.81,0,0,0,1",
	}, "\n")

	b := bus.NewMemoryBus()
	defer b.Close()
	_, ch := b.Subscribe(bus.TopicAccel)

	port := NewMockPort(strings.NewReader(fixture))
	src := NewSource(port, b)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go port.Monitor(ctx)
	go src.Run(ctx)

	var got []bus.AccelMessage
	for len(got) < 2 {
		select {
		case payload := <-ch:
			var m bus.AccelMessage
			if err := json.Unmarshal(payload, &m); err != nil {
				t.Fatalf("bad payload: %v", err)
			}
			got = append(got, m)
		case <-ctx.Done():
			t.Fatalf("timed out with %d samples", len(got))
		}
	}

	// The garbage line is skipped; the frames around it survive.
	if got[0].UnixNanos != 100 || got[1].UnixNanos != 200 {
		t.Errorf("got timestamps %d, %d", got[0].UnixNanos, got[1].UnixNanos)
	}
	if got[1].AX != 0.2 {
		t.Errorf("got ax %v", got[1].AX)
	}
}

func TestMockPortStopsOnCancel(t *testing.T) {
	port := NewMockPort(strings.NewReader("100,0,0,0,0,0,0,1\n"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		port.Monitor(ctx)
	}()

	<-port.Events()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop on cancellation")
	}
}
