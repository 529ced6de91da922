package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect sessions and continuity records",
}

var sessionTransitionsCmd = &cobra.Command{
	Use:   "transitions <session-id>",
	Short: "Print a session's lifecycle audit trail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, tr := range eng.Transitions(args[0]) {
			fmt.Printf("%s  %s -> %s  [%s] %s\n",
				tr.Timestamp.Format("15:04:05"), tr.FromStatus, tr.ToStatus, tr.Type, tr.Reason)
			if tr.Snapshot != "" {
				fmt.Printf("          snapshot: %s\n", tr.Snapshot)
			}
		}
	},
}

var continuityCmd = &cobra.Command{
	Use:   "continuity <user-id>",
	Short: "Print a user's continuity record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := eng.GetContinuity(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("user %s: %d session(s), avg quality %.2f\n",
			rec.UserID, rec.SessionCount, rec.AverageQuality)
		for _, s := range rec.Sessions {
			fmt.Printf("  %s  %d turns  resolved=%v  quality=%.2f\n",
				s.SessionID, s.TotalTurns, s.ResolutionAchieved, s.Quality)
		}
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionTransitionsCmd)
	sessionCmd.AddCommand(continuityCmd)
}
