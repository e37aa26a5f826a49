// Package sessions implements the session backend contract: an external
// collaborator that persists a Conversation under a session id.
// The core Agent never depends on this package directly; an embedder wires
// it around Agent.Conversation()/SetConversation() at the turn boundary.
package sessions

import (
	"context"

	"github.com/cordialrun/agentrt/pkg/models"
)

// Store is the three-operation contract a session backend satisfies.
type Store interface {
	// Load returns the conversation for sessionID, or an empty
	// conversation if none has been saved yet.
	Load(ctx context.Context, sessionID string) (*models.Conversation, error)

	// Save persists conv under sessionID, replacing any prior value.
	Save(ctx context.Context, sessionID string, conv *models.Conversation) error

	// Reset discards any conversation stored under sessionID.
	Reset(ctx context.Context, sessionID string) error
}
