package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatUserID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatUserID, "user", "local", "user ID for the session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	fmt.Println("docent - ask me anything about the knowledge base.")
	fmt.Println("Commands: /clear  /stats  /quit")
	fmt.Println()

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

		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			if app.assistant.ClearHistory(chatUserID) {
				fmt.Println("Conversation history cleared.")
			} else {
				fmt.Println("History is already empty.")
			}
			continue
		case "/stats":
			printStats(ctx, app)
			continue
		}

		answer, err := app.assistant.Answer(ctx, chatUserID, line)
		if err != nil {
			app.logger.Error("turn failed", "error", err)
			fmt.Println("Sorry, something went wrong. Please try again.")
			continue
		}

		fmt.Println()
		fmt.Println(answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Printf("\nSources: %s\n", strings.Join(answer.Sources, ", "))
		}
		fmt.Println()
	}
	return scanner.Err()
}

func printStats(ctx context.Context, app *app) {
	stats, err := app.assistant.Stats(ctx)
	if err != nil {
		fmt.Printf("Failed to gather stats: %v\n", err)
		return
	}
	fmt.Printf("Documents: %d\n", stats.DocumentCount)
	fmt.Printf("Users: %d\n", stats.UserCount)
	fmt.Printf("Active sessions: %d\n", stats.ActiveSessions)
}
