package agent

import "github.com/cordialrun/agentrt/pkg/models"

// repairTranscript drops tool_use blocks whose matching tool_result never
// made it into the following user turn, and tool_result blocks whose
// tool_use_id matches no preceding tool_use. It is run once when a
// conversation is loaded from a session backend, so that a transcript
// persisted mid-loop (e.g. the process died between appending the
// assistant turn and appending the tool results) never violates the
// pairing invariant the rest of the Agent core assumes.
func repairTranscript(conv *models.Conversation) {
	dropLeadingOrphanResults(conv)
	msgs := conv.Messages
	for i := range msgs {
		if msgs[i].Role != models.RoleAssistant {
			continue
		}
		uses := msgs[i].ToolUses()
		if len(uses) == 0 {
			continue
		}

		answered := make(map[string]bool, len(uses))
		if i+1 < len(msgs) && msgs[i+1].Role == models.RoleUser {
			for _, r := range msgs[i+1].ToolResults() {
				answered[r.ToolResultForID] = true
			}
		}

		valid := make(map[string]bool, len(uses))
		var kept []models.ContentBlock
		for _, b := range msgs[i].Content {
			if b.Type == models.BlockToolUse && !answered[b.ToolUseID] {
				continue
			}
			if b.Type == models.BlockToolUse {
				valid[b.ToolUseID] = true
			}
			kept = append(kept, b)
		}
		msgs[i].Content = kept

		if i+1 < len(msgs) && msgs[i+1].Role == models.RoleUser {
			var keptResults []models.ContentBlock
			for _, b := range msgs[i+1].Content {
				if b.Type == models.BlockToolResult && !valid[b.ToolResultForID] {
					continue
				}
				keptResults = append(keptResults, b)
			}
			msgs[i+1].Content = keptResults
		}
	}

	// A user turn reduced to nothing (it held only orphaned tool_results)
	// would break alternation; drop it together with empty assistant turns.
	repaired := msgs[:0]
	for _, m := range msgs {
		if len(m.Content) == 0 {
			continue
		}
		repaired = append(repaired, m)
	}
	conv.Messages = repaired
}

// dropLeadingOrphanResults removes tool_result blocks from a transcript
// that opens with a user turn: no assistant turn precedes index 0, so no
// tool_use can claim them.
func dropLeadingOrphanResults(conv *models.Conversation) {
	if len(conv.Messages) == 0 || conv.Messages[0].Role != models.RoleUser {
		return
	}
	var kept []models.ContentBlock
	for _, b := range conv.Messages[0].Content {
		if b.Type == models.BlockToolResult {
			continue
		}
		kept = append(kept, b)
	}
	conv.Messages[0].Content = kept
	if len(kept) == 0 {
		conv.Messages = conv.Messages[1:]
	}
}
