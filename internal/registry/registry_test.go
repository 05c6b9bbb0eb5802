package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleString(t *testing.T) {
	assert.Equal(t, "device", RoleDevice.String())
	assert.Equal(t, "mobile", RoleMobile.String())
	assert.Equal(t, "unknown", Role(42).String())
}

func TestRoleOpposite(t *testing.T) {
	assert.Equal(t, RoleMobile, RoleDevice.Opposite())
	assert.Equal(t, RoleDevice, RoleMobile.Opposite())
}

func TestSubscribeUnsubscribeNoLeak(t *testing.T) {
	r := New(0)
	for _, role := range []Role{RoleDevice, RoleMobile} {
		sub := r.Subscribe("dev1", role)
		require.Equal(t, 1, r.Len())
		r.Unsubscribe("dev1", role, sub)
		assert.Equal(t, 0, r.Len(), "role %s left a stale entry", role)
	}
}

func TestPublishWithoutDestination(t *testing.T) {
	r := New(0)

	// Unknown identifier.
	delivered, dropped := r.Publish("ghost", RoleDevice, "anyone?")
	assert.False(t, delivered)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, 0, r.Len())

	// Device present but no mobile slot: routing miss, registry unchanged.
	sub := r.Subscribe("dev1", RoleDevice)
	defer r.Unsubscribe("dev1", RoleDevice, sub)

	delivered, _ = r.Publish("dev1", RoleDevice, "anyone?")
	assert.False(t, delivered)
	assert.Equal(t, 1, r.Len())
}

func TestPublishRoutesToOppositeRoleOnly(t *testing.T) {
	r := New(10)
	devSub := r.Subscribe("dev1", RoleDevice)
	mobSub := r.Subscribe("dev1", RoleMobile)

	delivered, _ := r.Publish("dev1", RoleDevice, "to mobile")
	require.True(t, delivered)
	assert.Equal(t, "to mobile", <-mobSub.Messages())

	// The sender's own role must not hear its message.
	select {
	case msg := <-devSub.Messages():
		t.Fatalf("device received its own message %q", msg)
	default:
	}

	delivered, _ = r.Publish("dev1", RoleMobile, "to device")
	require.True(t, delivered)
	assert.Equal(t, "to device", <-devSub.Messages())
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	r := New(10)
	devSub := r.Subscribe("dev1", RoleDevice)
	defer r.Unsubscribe("dev1", RoleDevice, devSub)

	var mobSubs []<-chan string
	for range 3 {
		sub := r.Subscribe("dev1", RoleMobile)
		mobSubs = append(mobSubs, sub.Messages())
		defer r.Unsubscribe("dev1", RoleMobile, sub)
	}

	delivered, dropped := r.Publish("dev1", RoleDevice, "hello mobiles")
	require.True(t, delivered)
	assert.Equal(t, 0, dropped)
	for i, msgs := range mobSubs {
		assert.Equal(t, "hello mobiles", <-msgs, "mobile %d", i)
	}
}

func TestPartialUnsubscribeKeepsSlot(t *testing.T) {
	r := New(10)
	first := r.Subscribe("dev1", RoleMobile)
	second := r.Subscribe("dev1", RoleMobile)
	require.Equal(t, 2, r.Subscribers("dev1", RoleMobile))

	r.Unsubscribe("dev1", RoleMobile, first)
	assert.Equal(t, 1, r.Subscribers("dev1", RoleMobile))
	assert.Equal(t, 1, r.Len())

	// The remaining subscriber still receives publishes.
	delivered, _ := r.Publish("dev1", RoleDevice, "still routed")
	require.True(t, delivered)
	assert.Equal(t, "still routed", <-second.Messages())

	r.Unsubscribe("dev1", RoleMobile, second)
	assert.Equal(t, 0, r.Len())
}

func TestUnsubscribeVacantIsNoOp(t *testing.T) {
	r := New(0)

	// Unknown identifier.
	r.Unsubscribe("ghost", RoleDevice, nil)

	// Known identifier, vacant role.
	sub := r.Subscribe("dev1", RoleDevice)
	r.Unsubscribe("dev1", RoleMobile, nil)
	assert.Equal(t, 1, r.Len())

	// Double unsubscribe of the same handle.
	r.Unsubscribe("dev1", RoleDevice, sub)
	r.Unsubscribe("dev1", RoleDevice, sub)
	assert.Equal(t, 0, r.Len())
}

func TestSlotRecreatedAfterTeardown(t *testing.T) {
	r := New(10)
	old := r.Subscribe("dev1", RoleMobile)
	r.Unsubscribe("dev1", RoleMobile, old)

	// A later subscriber gets a fresh channel, not the torn-down one.
	fresh := r.Subscribe("dev1", RoleMobile)
	delivered, _ := r.Publish("dev1", RoleDevice, "fresh start")
	require.True(t, delivered)
	assert.Equal(t, "fresh start", <-fresh.Messages())

	_, ok := <-old.Messages()
	assert.False(t, ok, "old subscription should be closed")
}

func TestConcurrentSubscribeUnsubscribe(t *testing.T) {
	r := New(10)
	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("dev%d", n%2)
			role := Role(n % 2)
			for range 100 {
				sub := r.Subscribe(id, role)
				r.Publish(id, role.Opposite(), "churn")
				r.Unsubscribe(id, role, sub)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len(), "registry should be empty after all churn")
}
