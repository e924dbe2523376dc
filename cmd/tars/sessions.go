package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tars/internal/memory"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionsList()
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionsList()
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a stored conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.DeleteConversation(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func openStore() (*memory.Store, error) {
	return memory.NewStore(memory.Options{
		PersistDir:  cfg.Memory.PersistDir,
		MaxMessages: cfg.Memory.MaxMessages,
	})
}

func runSessionsList() error {
	store, err := openStore()
	if err != nil {
		return err
	}

	summaries := store.ListConversations()
	if len(summaries) == 0 {
		fmt.Println("No stored conversations.")
		return nil
	}

	for _, s := range summaries {
		fmt.Printf("%-28s %4d messages  created %s\n",
			s.ID, s.MessageCount, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
