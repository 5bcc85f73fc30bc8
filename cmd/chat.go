package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/invoicer/internal/ingest"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
	"github.com/ziadkadry99/invoicer/internal/progress"
	"github.com/ziadkadry99/invoicer/internal/qa"
)

var chatCmd = &cobra.Command{
	Use:   "chat [path|dir|glob]...",
	Short: "Process invoices and ask questions about them interactively",
	Long: `Processes the given invoices, or loads an index saved with
"invoicer process --save-index", then answers questions in a prompt.
Type /summary, /total or /dates for quick questions, /history for the
transcript and /quit to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("index", "", "load a saved index instead of processing files")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	indexDir, _ := cmd.Flags().GetString("index")
	if len(args) == 0 && indexDir == "" {
		return errors.New("give invoice paths to process or --index to load")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, progress.NewReporter())
	if err != nil {
		return err
	}

	if indexDir != "" {
		if err := a.index.Load(indexDir); err != nil {
			return fmt.Errorf("loading index from %s: %w", indexDir, err)
		}
		fmt.Printf("Loaded index from %s (%d chunks)\n", indexDir, a.index.Stats().Chunks)
	}

	if len(args) > 0 {
		resolved, err := ingest.Resolve(args, ingest.Config{})
		if err != nil {
			return err
		}
		opts := pipeline.DefaultOptions()
		res, err := a.orch.Process(ctx, resolved.Documents, opts)
		if err != nil {
			return err
		}
		printResult(os.Stdout, res, opts)
	}

	fmt.Println()
	return chatLoop(ctx, a)
}

func chatLoop(ctx context.Context, a *app) error {
	prompt := promptui.Prompt{Label: "Question"}
	for {
		line, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		question := line
		if strings.HasPrefix(line, "/") {
			name := strings.TrimPrefix(line, "/")
			switch name {
			case "quit", "exit":
				return nil
			case "history":
				printTranscript(a.orch.Session().Transcript().Turns())
				continue
			case "clear":
				a.orch.Session().Transcript().Reset()
				continue
			}
			q, ok := qa.LookupQuick(name)
			if !ok {
				fmt.Printf("Unknown command %s\n", line)
				continue
			}
			question = q
		}

		answer := a.orch.Ask(ctx, question)
		fmt.Println()
		printAnswer(os.Stdout, question, answer)
		fmt.Println()
	}
}

func printTranscript(turns []qa.Turn) {
	if len(turns) == 0 {
		fmt.Println("No questions asked yet.")
		return
	}
	for _, t := range turns {
		fmt.Printf("[%s] %s: %s\n", t.At.Format("15:04:05"), t.Role, t.Content)
	}
}
