package inbox

import (
	"errors"
	"testing"
)

func TestResolveRecipients(t *testing.T) {
	tests := []struct {
		name    string
		inboxID string
		want    Recipients
		wantErr bool
	}{
		{name: "direct", inboxID: "d_alice_bob", want: Recipients{UserA: "alice", UserB: "bob"}},
		{name: "upper case prefix", inboxID: "D_alice_bob", want: Recipients{UserA: "alice", UserB: "bob"}},
		{name: "digits", inboxID: "d_u1_u22", want: Recipients{UserA: "u1", UserB: "u22"}},
		{name: "not an inbox", inboxID: "not-an-inbox", wantErr: true},
		{name: "empty", inboxID: "", wantErr: true},
		{name: "group prefix", inboxID: "g_alice_bob", wantErr: true},
		{name: "single participant", inboxID: "d_alice", wantErr: true},
		{name: "three tokens", inboxID: "d_alice_bob_carol", wantErr: true},
		{name: "empty token", inboxID: "d__bob", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRecipients(tt.inboxID)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedInboxID) {
					t.Fatalf("expected ErrMalformedInboxID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRecipientsHas(t *testing.T) {
	r := Recipients{UserA: "alice", UserB: "bob"}

	if !r.Has("alice") || !r.Has("bob") {
		t.Error("participant not recognised")
	}
	if r.Has("carol") {
		t.Error("outsider recognised as participant")
	}
}

func TestDirect(t *testing.T) {
	got, err := Direct("bob", "alice")
	if err != nil {
		t.Fatalf("Direct failed: %v", err)
	}
	if got != "d_alice_bob" {
		t.Errorf("expected d_alice_bob, got %s", got)
	}

	r, err := ResolveRecipients(got)
	if err != nil || !r.Has("alice") || !r.Has("bob") {
		t.Errorf("Direct output does not round trip: %+v, %v", r, err)
	}

	if _, err := Direct("al_ice", "bob"); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}
}
