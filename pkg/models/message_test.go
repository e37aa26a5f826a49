package models

import (
	"encoding/json"
	"testing"
)

func pairedConv() *Conversation {
	conv := &Conversation{}
	conv.Append(Message{Role: RoleUser, Content: []ContentBlock{Text("hi")}})
	conv.Append(Message{Role: RoleAssistant, Content: []ContentBlock{
		Text("let me check"),
		ToolUse("t1", "read", json.RawMessage(`{"path":"a.txt"}`)),
	}})
	conv.Append(Message{Role: RoleUser, Content: []ContentBlock{
		ToolResult("t1", "contents", false),
	}})
	conv.Append(Message{Role: RoleAssistant, Content: []ContentBlock{Text("done")}})
	return conv
}

func TestCheckPairingAccepts(t *testing.T) {
	if err := pairedConv().CheckPairing(); err != nil {
		t.Fatalf("CheckPairing() on a well-formed conversation: %v", err)
	}
}

func TestCheckPairingRejectsMissingResult(t *testing.T) {
	conv := pairedConv()
	conv.Messages[2].Content = nil
	if err := conv.CheckPairing(); err == nil {
		t.Fatal("expected CheckPairing to reject a tool_use with no result")
	}
}

func TestCheckPairingRejectsDuplicateResult(t *testing.T) {
	conv := pairedConv()
	conv.Messages[2].Content = append(conv.Messages[2].Content, ToolResult("t1", "again", false))
	if err := conv.CheckPairing(); err == nil {
		t.Fatal("expected CheckPairing to reject a duplicated tool_result")
	}
}

func TestCheckAlternationRejectsConsecutiveTurns(t *testing.T) {
	conv := pairedConv()
	conv.Append(Message{Role: RoleAssistant, Content: []ContentBlock{Text("again")}})
	if err := conv.CheckAlternation(); err == nil {
		t.Fatal("expected CheckAlternation to reject consecutive assistant turns")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	conv := pairedConv()
	clone := conv.Clone()

	clone.Messages[0].Content[0].Text = "mutated"
	clone.Append(Message{Role: RoleUser, Content: []ContentBlock{Text("extra")}})

	if conv.Messages[0].Content[0].Text != "hi" {
		t.Fatal("mutating a clone's content block leaked into the original")
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("appending to a clone changed the original's length to %d", len(conv.Messages))
	}
}

func TestToolUsesAndResultsPreserveOrder(t *testing.T) {
	msg := Message{Role: RoleAssistant, Content: []ContentBlock{
		ToolUse("a", "first", nil),
		Text("between"),
		ToolUse("b", "second", nil),
	}}
	uses := msg.ToolUses()
	if len(uses) != 2 || uses[0].ToolUseID != "a" || uses[1].ToolUseID != "b" {
		t.Fatalf("ToolUses() = %+v, want [a b] in order", uses)
	}
}

func TestPopLast(t *testing.T) {
	conv := pairedConv()
	n := len(conv.Messages)
	last, ok := conv.PopLast()
	if !ok || last.Role != RoleAssistant {
		t.Fatalf("PopLast() = (%+v, %v), want the final assistant turn", last, ok)
	}
	if len(conv.Messages) != n-1 {
		t.Fatalf("PopLast left %d messages, want %d", len(conv.Messages), n-1)
	}

	empty := &Conversation{}
	if _, ok := empty.PopLast(); ok {
		t.Fatal("PopLast on an empty conversation reported ok")
	}
}
