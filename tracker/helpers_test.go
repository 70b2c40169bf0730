package tracker

import (
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/asset-tracking/bus"
)

// busHarness captures everything published during a test.
type busHarness struct {
	bus *bus.InProcess
	sub *bus.Subscription
}

func newBusHarness(t *testing.T) busHarness {
	t.Helper()
	b := bus.NewInProcess(64)
	sub, err := b.Subscribe(bus.TopicAll)
	if err != nil {
		t.Fatal(err)
	}
	return busHarness{bus: b, sub: sub}
}

func (h busHarness) next(t *testing.T) bus.Event {
	t.Helper()
	select {
	case ev := <-h.sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event published within deadline")
		return bus.Event{}
	}
}

func (h busHarness) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-h.sub.Events():
		t.Fatalf("unexpected event published: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h busHarness) close() {
	_ = h.bus.Close()
}
