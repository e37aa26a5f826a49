// Package main provides the reference embedder CLI for agentrt.
//
// agentrt is not a product: it is the minimal program that exercises the
// embedding API (Agent construction, StreamMessage, the Conversation
// accessor) against a real provider, a real tool registry,
// and a real config file. Anything resembling a product surface (an
// HTTP/SSE front-end, multi-channel chat bridges) is explicitly out of
// scope and lives, if anywhere, in a caller that embeds this package's
// exported internals instead of in this binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentrt",
		Short: "Reference embedder for the agentrt tool-using conversational loop",
		Long: `agentrt drives a single Agent against a configured LLM provider,
tool registry, skill registry, and event store, reading its options table
from a YAML config file.

It exists to prove the embedding API end to end, not as a deployable
product: there is no HTTP server, no session multiplexing across users, and
no chat-platform bridge here. An embedder wires those around the Agent and
Conversation types this package imports from internal/agent.`,
	}
	cmd.AddCommand(buildRunCmd(), buildResumeCmd(), buildVersionCmd())
	return cmd
}
