package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aurorabook/concierge/internal/tenancy"
)

type fakeCheckpointLoader struct {
	seq   int64
	state json.RawMessage
	ok    bool
}

func (f *fakeCheckpointLoader) LoadLatestCheckpoint(_ context.Context, _ int64, _ string) (int64, json.RawMessage, bool, error) {
	return f.seq, f.state, f.ok, nil
}

func TestHybridStoreSingleTenantModeMemoryOnly(t *testing.T) {
	store := NewHybridStore(nil, nil, false, nil)
	ctx := context.Background()

	s, err := store.GetOrCreate(ctx, 1, "conv-1", tenancy.ChannelWeb)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	s.Qualif.Name = "Jean Dupont"
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := store.GetOrCreate(ctx, 1, "conv-1", tenancy.ChannelWeb)
	if err != nil {
		t.Fatalf("GetOrCreate (2nd): %v", err)
	}
	if again.Qualif.Name != "Jean Dupont" {
		t.Fatalf("expected cache hit to preserve name, got %+v", again.Qualif)
	}
}

func TestHybridStoreVoiceRestoresFromCheckpoint(t *testing.T) {
	checkpointSession := Session{TenantID: 5, ConvID: "call-9", Channel: tenancy.ChannelVoice, State: "QUALIF_NAME"}
	blob, err := json.Marshal(checkpointSession)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	loader := &fakeCheckpointLoader{seq: 3, state: blob, ok: true}
	store := NewHybridStore(nil, loader, false, nil)

	s, err := store.GetOrCreate(context.Background(), 5, "call-9", tenancy.ChannelVoice)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if s.State != "QUALIF_NAME" {
		t.Fatalf("expected state restored from checkpoint, got %q", s.State)
	}
}

func TestMultiTenantModeRequiresPool(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when multi-tenant mode is on with a nil pool")
		}
	}()
	NewHybridStore(nil, nil, true, nil)
}
