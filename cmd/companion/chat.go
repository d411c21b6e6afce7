package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/easeaico/companion/internal/chat"
	"github.com/easeaico/companion/internal/types"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write the transcript to this file instead of stdout")

	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Read messages from stdin and print the companion's replies.

In-chat commands:
  /reply <message-id> <text>   reply to an earlier message
  /delete <message-id>         delete one of your messages
  /quit                        leave the chat`,
	RunE: runChat,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the latest messages of the active conversation",
	RunE:  runHistory,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <message-id>",
	Short: "Delete one message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.chat.DeleteMessage(cmd.Context(), userID, args[0]); err != nil {
			return err
		}
		fmt.Println("Message deleted")
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every message in your conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()
		n, err := a.chat.ClearHistory(cmd.Context(), userID)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d message(s)\n", n)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the latest conversation as JSON",
	RunE:  runExport,
}

type chatInput struct {
	text      string
	replyToID string
	deleteID  string
	quit      bool
}

// parseChatLine turns one stdin line into a chat action.
func parseChatLine(line string) (chatInput, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return chatInput{text: line}, nil
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/quit", "/exit":
		return chatInput{quit: true}, nil
	case "/reply":
		id, text, _ := strings.Cut(rest, " ")
		if id == "" || strings.TrimSpace(text) == "" {
			return chatInput{}, errors.New("usage: /reply <message-id> <text>")
		}
		return chatInput{text: strings.TrimSpace(text), replyToID: id}, nil
	case "/delete":
		if rest == "" {
			return chatInput{}, errors.New("usage: /delete <message-id>")
		}
		return chatInput{deleteID: rest}, nil
	default:
		return chatInput{}, fmt.Errorf("unknown command %s", cmd)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	c, err := a.companions.Get(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("Chatting with %s. Type /quit to leave.\n\n", c.Name)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		in, err := parseChatLine(scanner.Text())
		if err != nil {
			fmt.Println(err)
			continue
		}
		switch {
		case in.quit:
			return nil
		case in.deleteID != "":
			if err := a.chat.DeleteMessage(ctx, userID, in.deleteID); err != nil {
				fmt.Printf("! %v\n", err)
			} else {
				fmt.Println("(deleted)")
			}
			continue
		case in.text == "":
			continue
		}

		res, err := a.chat.Send(ctx, chat.SendRequest{
			UserID:    userID,
			Message:   in.text,
			ReplyToID: in.replyToID,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, chat.ErrReplyUnavailable) {
				fmt.Printf("! %v\n", chat.ErrReplyUnavailable)
				continue
			}
			return err
		}

		fmt.Printf("\n%s [%s]: %s\n", c.Name, res.AssistantMessage.ID, res.AssistantMessage.Content)
		if res.Memory != nil {
			fmt.Printf("  (remembered: %s, importance %d)\n", res.Memory.Category, res.Memory.Importance)
		}
		fmt.Printf("  (your message: %s)\n\n", res.UserMessage.ID)
	}
	return scanner.Err()
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	h, err := a.chat.History(cmd.Context(), userID)
	if err != nil {
		return err
	}
	if len(h.Messages) == 0 {
		fmt.Printf("No messages with %s yet\n", h.Companion.Name)
		return nil
	}
	for _, m := range h.Messages {
		fmt.Println(formatMessage(m, h.Companion.Name))
	}
	return nil
}

func formatMessage(m types.Message, companionName string) string {
	speaker := "you"
	if m.Role == types.RoleAssistant {
		speaker = companionName
	}
	line := fmt.Sprintf("[%s] %s %s: %s", m.ID, m.CreatedAt.Local().Format("2006-01-02 15:04"), speaker, m.Content)
	if m.ReplyToID != "" && m.Role == types.RoleUser {
		line += fmt.Sprintf(" (reply to %s)", shortID(m.ReplyToID))
	}
	return line
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	t, err := a.chat.Export(cmd.Context(), userID)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
