package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"inboxchat/internal/app/db"
	"inboxchat/internal/app/hub"
	"inboxchat/internal/app/user"
)

func setup(t *testing.T) (*Dispatcher, *hub.Hub, db.Store) {
	t.Helper()

	store, err := db.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(store.Close)

	h := hub.NewHub(time.Hour)
	t.Cleanup(h.Shutdown)

	return NewDispatcher(store, h), h, store
}

// wait runs one wait cycle for userID in the background.
func wait(t *testing.T, h *hub.Hub, userID string) <-chan hub.Result {
	t.Helper()

	ch := make(chan hub.Result, 1)
	go func() {
		res, err := h.Wait(context.Background(), userID)
		if err == nil {
			ch <- res
		}
		close(ch)
	}()

	deadline := time.Now().Add(time.Second)
	for !h.Pending(userID) {
		if time.Now().After(deadline) {
			t.Fatalf("%s never started waiting", userID)
		}
		time.Sleep(time.Millisecond)
	}

	return ch
}

func receive(t *testing.T, ch <-chan hub.Result) hub.Result {
	t.Helper()

	select {
	case res, ok := <-ch:
		if !ok {
			t.Fatal("wait ended without a result")
		}
		return res
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
		return hub.Result{}
	}
}

func TestPostMessageNotifiesBothParticipants(t *testing.T) {
	d, h, store := setup(t)

	alice := wait(t, h, "alice")
	bob := wait(t, h, "bob")

	msg, err := d.PostMessage(context.Background(), "bob", "d_alice_bob", "hi")
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}

	for name, ch := range map[string]<-chan hub.Result{"alice": alice, "bob": bob} {
		res := receive(t, ch)
		if res.Kind != hub.KindInbox || res.Inbox != "d_alice_bob" || res.Marker != msg.Marker {
			t.Errorf("%s got %+v", name, res)
		}
	}

	stored, err := store.FindMessages(context.Background(), "d_alice_bob", nil)
	if err != nil || len(stored) != 1 || stored[0].Text != "hi" {
		t.Errorf("stored messages = %v, %v", stored, err)
	}
}

func TestPostMessageToMalformedInboxIsKept(t *testing.T) {
	d, h, store := setup(t)

	alice := wait(t, h, "alice")

	msg, err := d.PostMessage(context.Background(), "alice", "not-an-inbox", "hello")
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if msg.ID == 0 {
		t.Error("message was not persisted")
	}

	stored, _ := store.FindMessages(context.Background(), "not-an-inbox", nil)
	if len(stored) != 1 {
		t.Errorf("expected the message to be stored, got %d", len(stored))
	}

	if !h.Pending("alice") {
		t.Error("malformed inbox woke an unrelated waiter")
	}

	h.NotifyLogout("alice")
	if res := receive(t, alice); res.Kind != hub.KindLogout {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNotifyMessageOfflineRecipients(t *testing.T) {
	d, _, _ := setup(t)

	if n := d.NotifyMessage(db.Message{ID: 1, Inbox: "d_alice_bob", Marker: 1}); n != 0 {
		t.Errorf("woke %d offline users", n)
	}
}

func TestConcurrentDispatchSingleWinner(t *testing.T) {
	d, h, _ := setup(t)

	alice := wait(t, h, "alice")

	var wg sync.WaitGroup
	woken := make([]int, 2)
	for i := range woken {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			woken[i] = d.NotifyMessage(db.Message{ID: int64(i + 1), Inbox: "d_alice_carol", Marker: int64(100 + i)})
		}(i)
	}
	wg.Wait()

	if woken[0]+woken[1] != 1 {
		t.Errorf("expected exactly one winning notification, got %v", woken)
	}

	res := receive(t, alice)
	if res.Marker != 100 && res.Marker != 101 {
		t.Errorf("unexpected marker %d", res.Marker)
	}
}

func TestAnnouncePresenceSkipsSelf(t *testing.T) {
	d, h, _ := setup(t)

	alice := wait(t, h, "alice")
	bob := wait(t, h, "bob")

	d.AnnouncePresence("alice", user.StatusOnline)

	res := receive(t, bob)
	payload, ok := res.Payload.(PresencePayload)
	if res.Kind != hub.KindNotification || !ok {
		t.Fatalf("bob got %+v", res)
	}
	if payload.Type != "presence" || payload.UserID != "alice" || payload.Status != user.StatusOnline {
		t.Errorf("unexpected payload %+v", payload)
	}

	if !h.Pending("alice") {
		t.Error("alice was notified of alice's own presence change")
	}

	h.NotifyLogout("alice")
	receive(t, alice)
}
