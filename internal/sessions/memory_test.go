package sessions

import (
	"context"
	"testing"

	"github.com/cordialrun/agentrt/pkg/models"
)

func TestMemoryStoreLoadMissingReturnsEmpty(t *testing.T) {
	store := NewMemoryStore()
	conv, err := store.Load(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("want empty conversation, got %d messages", len(conv.Messages))
	}
}

func TestMemoryStoreSaveLoadRoundTrips(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv := &models.Conversation{Messages: []models.Message{
		{Role: models.RoleUser, Content: []models.ContentBlock{models.Text("hi")}},
	}}

	if err := store.Save(ctx, "s1", conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content[0].Text != "hi" {
		t.Fatalf("unexpected conversation: %+v", got)
	}
}

func TestMemoryStoreLoadClonesSoCallerCannotMutateStoredCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv := &models.Conversation{Messages: []models.Message{
		{Role: models.RoleUser, Content: []models.ContentBlock{models.Text("original")}},
	}}
	if err := store.Save(ctx, "s1", conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded.Messages[0].Content[0].Text = "mutated"

	reloaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Messages[0].Content[0].Text != "original" {
		t.Fatalf("stored conversation was mutated through a loaded copy: %q", reloaded.Messages[0].Content[0].Text)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv := &models.Conversation{Messages: []models.Message{
		{Role: models.RoleUser, Content: []models.ContentBlock{models.Text("hi")}},
	}}
	if err := store.Save(ctx, "s1", conv); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Reset(ctx, "s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if len(got.Messages) != 0 {
		t.Fatalf("want empty conversation after reset, got %d messages", len(got.Messages))
	}
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a := &models.Conversation{Messages: []models.Message{
		{Role: models.RoleUser, Content: []models.ContentBlock{models.Text("a")}},
	}}
	b := &models.Conversation{Messages: []models.Message{
		{Role: models.RoleUser, Content: []models.ContentBlock{models.Text("b")}},
	}}
	if err := store.Save(ctx, "a", a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := store.Save(ctx, "b", b); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if err := store.Reset(ctx, "a"); err != nil {
		t.Fatalf("reset a: %v", err)
	}

	gotB, err := store.Load(ctx, "b")
	if err != nil {
		t.Fatalf("load b: %v", err)
	}
	if len(gotB.Messages) != 1 || gotB.Messages[0].Content[0].Text != "b" {
		t.Fatalf("resetting session a affected session b: %+v", gotB)
	}
}
