package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatUserID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	Long: `Starts one session and reads turns from stdin. Inline commands:

  /pause <reason>   pause the session
  /resume           resume a paused session
  /state            print the live session state
  /history          print the conversation history
  /blocks           print the synchronized memory blocks
  /end              end the session and exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatUserID, "user", "u", "local-user", "user ID for the session")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID := uuid.NewString()

	state, err := eng.StartSession(ctx, chatUserID, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("session %s started (phase: %s)\n", state.SessionID, state.Phase)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := runChatCommand(cmd, sessionID, line)
			if err != nil {
				fmt.Println("error:", err)
			}
			if done {
				return nil
			}
			continue
		}

		result, err := eng.SubmitTurn(ctx, sessionID, line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(result.Reply)
		fmt.Printf("  [confidence %.2f | context %.2f | %d relevant turn(s)]\n",
			result.Confidence, result.ContextConfidence, result.RelevantTurnCount)
	}

	if _, err := eng.EndSession(ctx, sessionID, "chat closed"); err != nil {
		// Session may already be ended or paused; nothing to clean up.
		return nil
	}
	return scanner.Err()
}

func runChatCommand(cmd *cobra.Command, sessionID, line string) (done bool, err error) {
	ctx := cmd.Context()
	fields := strings.Fields(line)

	switch fields[0] {
	case "/pause":
		reason := "user pause"
		if len(fields) > 1 {
			reason = strings.Join(fields[1:], " ")
		}
		_, err = eng.PauseSession(sessionID, reason)
		if err == nil {
			fmt.Println("session paused")
		}
	case "/resume":
		_, err = eng.ResumeSession(ctx, sessionID)
		if err == nil {
			fmt.Println("session resumed")
		}
	case "/state":
		state, gerr := eng.GetSessionState(sessionID)
		if gerr != nil {
			return false, gerr
		}
		fmt.Printf("status=%s phase=%s turns=%d engagement=%s complexity=%.2f quality=%.2f\n",
			state.Status, state.Phase, state.TotalTurns, state.Engagement,
			state.ComplexityScore, state.Quality.OverallQuality)
		for name, on := range state.Flags {
			if on {
				fmt.Printf("  flag: %s\n", name)
			}
		}
	case "/history":
		history, gerr := eng.GetHistory(sessionID)
		if gerr != nil {
			return false, gerr
		}
		for _, t := range history.Turns {
			fmt.Printf("%2d. USER: %s\n    AGENT: %s\n", t.Number, t.UserMessage, t.AgentResponse)
		}
	case "/blocks":
		for _, id := range []string{"history", "session_digest", "rolling_summary", "usage_metadata"} {
			if content, ok := eng.Blocks().ReadBlock(sessionID, id); ok {
				fmt.Printf("--- %s ---\n%s", id, content)
			}
		}
	case "/end":
		if _, err = eng.EndSession(ctx, sessionID, "user end"); err == nil {
			fmt.Println("session ended")
			return true, nil
		}
	default:
		fmt.Println("unknown command:", fields[0])
	}
	return false, err
}
