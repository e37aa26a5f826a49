package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cordialrun/agentrt/internal/agent"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		message    string
		streamID   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send one message to a fresh Agent and print the streamed response",
		Long: `run constructs a new Agent from the given config, sends it one user
message via StreamMessage, and prints text fragments to stdout as
they arrive, followed by a one-line summary of each structured event.

Pass --stream-id to have every emitted event additionally persist to the
Event Store, so a later "agentrt resume" invocation can replay from the
last delivered event id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), cmd.OutOrStdout(), configPath, message, streamID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentrt.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&message, "message", "m", "", "User message to send (required)")
	cmd.Flags().StringVar(&streamID, "stream-id", "", "Stream id to persist events under, enabling resume")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func buildResumeCmd() *cobra.Command {
	var (
		configPath string
		streamID   string
		afterID    uint64
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Replay a stream's events from the Event Store after a given id",
		Long: `resume reconnects to a stream previously run with --stream-id and
replays every event with id > --after-id, matching Last-Event-ID resume
semantics for the wire format: no event is skipped or duplicated, and the
replay ends at a terminal done or error event (or immediately, if the
stream is already terminal).

This does not continue a conversation; it only replays what the Event
Store already recorded for a stream started by "agentrt run --stream-id".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resumeStream(cmd.Context(), cmd.OutOrStdout(), configPath, streamID, afterID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentrt.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&streamID, "stream-id", "", "Stream id to resume (required)")
	cmd.Flags().Uint64Var(&afterID, "after-id", 0, "Only replay events with id greater than this")
	_ = cmd.MarkFlagRequired("stream-id")

	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agentrt version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// version is the reference embedder's own version, unrelated to
// config.CurrentVersion (the config file schema version).
const version = "0.1.0"

func runOnce(ctx context.Context, out io.Writer, configPath, message, streamID string) error {
	rt, err := buildRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.closeFn(ctx)

	stream, err := rt.agent.StreamMessage(ctx, message, nil, streamID)
	if err != nil {
		return fmt.Errorf("stream_message: %w", err)
	}

	for output := range stream {
		if err := printOutput(out, output); err != nil {
			return err
		}
	}
	return nil
}

func printOutput(out io.Writer, output agent.Output) error {
	if output.Text != "" {
		if _, err := fmt.Fprint(out, output.Text); err != nil {
			return err
		}
	}
	if output.Event != nil {
		if _, err := fmt.Fprintf(out, "\n[event %d] %s\n", output.Event.ID, output.Event.Type); err != nil {
			return err
		}
	}
	if output.Err != nil {
		return output.Err
	}
	return nil
}

func resumeStream(ctx context.Context, out io.Writer, configPath, streamID string, afterID uint64) error {
	rt, err := buildRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.closeFn(ctx)

	events, err := rt.agent.Events().Read(ctx, streamID, afterID, 0)
	if err != nil {
		return fmt.Errorf("event store read: %w", err)
	}
	for _, ev := range events {
		if _, err := fmt.Fprintf(out, "[event %d] %s\n", ev.ID, ev.Type); err != nil {
			return err
		}
	}
	return nil
}
