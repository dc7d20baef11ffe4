package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"atlas-g/protocol/pkg/cli"
	"atlas-g/protocol/pkg/config"
	"atlas-g/protocol/pkg/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or remove persisted sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a session snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  showSession,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd, sessionDeleteCmd)
}

func showSession(cmd *cobra.Command, args []string) error {
	store, err := openSessions(cmd.Context(), config.MustGetConfig().Sessions)
	if err != nil {
		return cli.NewCommandError("session show", err)
	}
	defer store.Close()

	snap, err := store.Load(cmd.Context(), args[0])
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("session %s not found", args[0])
	}
	if err != nil {
		return cli.NewCommandError("session show", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func deleteSession(cmd *cobra.Command, args []string) error {
	store, err := openSessions(cmd.Context(), config.MustGetConfig().Sessions)
	if err != nil {
		return cli.NewCommandError("session delete", err)
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return cli.NewCommandError("session delete", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Session %s deleted\n", args[0])
	return nil
}
