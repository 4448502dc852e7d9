// Command askctl calls the remote functions from a terminal.
//
//	ASKMYDOCS_URL=http://localhost:8080 ASKMYDOCS_TOKEN=... askctl summarize notes.txt
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/requester"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		var fnErr *requester.Error
		if errors.As(err, &fnErr) && fnErr.LimitReached() {
			fmt.Fprintf(os.Stderr, "daily %s limit of %d reached\n", fnErr.Kind, fnErr.Limit)
		}
		os.Exit(1)
	}
}

type globals struct {
	baseURL string
	apiKey  string
	token   string
}

func (g *globals) client() (*requester.Client, error) {
	if strings.TrimSpace(g.baseURL) == "" {
		return nil, fmt.Errorf("--url or ASKMYDOCS_URL is required")
	}
	return requester.New(g.baseURL, g.apiKey, g.token), nil
}

func rootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "askctl",
		Short:        "Summarize, ask, transcribe and share through the AskMyDocs functions",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.baseURL, "url", os.Getenv("ASKMYDOCS_URL"), "functions base URL")
	root.PersistentFlags().StringVar(&g.apiKey, "api-key", os.Getenv("ASKMYDOCS_API_KEY"), "public API key sent as apikey")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("ASKMYDOCS_TOKEN"), "user access token")

	root.AddCommand(summarizeCmd(g), askCmd(g), transcribeCmd(g), shareCmd(g))
	return root
}

func summarizeCmd(g *globals) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "summarize <file.txt>",
		Short: "Summarize a text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			return run(cmd.Context(), g, func(ctx context.Context, c *requester.Client) (string, error) {
				return c.Summarize(ctx, string(text), name)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "document title (defaults to the file name)")
	return cmd
}

func askCmd(g *globals) *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "ask --doc file [--doc file ...] <question>",
		Short: "Ask a question grounded in one or more text files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(files) == 0 {
				return fmt.Errorf("at least one --doc is required")
			}
			docs := make([]llm.Doc, 0, len(files))
			for _, f := range files {
				text, err := os.ReadFile(f)
				if err != nil {
					return fmt.Errorf("reading %s: %w", f, err)
				}
				docs = append(docs, llm.Doc{Name: filepath.Base(f), Text: string(text)})
			}
			question := strings.Join(args, " ")
			return run(cmd.Context(), g, func(ctx context.Context, c *requester.Client) (string, error) {
				return c.Ask(ctx, question, docs)
			})
		},
	}
	cmd.Flags().StringArrayVar(&files, "doc", nil, "text file to ground the answer in (repeatable)")
	return cmd
}

func transcribeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <url>",
		Short: "Transcribe audio reachable at a signed URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, func(ctx context.Context, c *requester.Client) (string, error) {
				return c.Transcribe(ctx, args[0])
			})
		},
	}
}

func shareCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "share <name> <summary-file>",
		Short: "Publish a summary page and print its URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading summary: %w", err)
			}
			return run(cmd.Context(), g, func(ctx context.Context, c *requester.Client) (string, error) {
				return c.Share(ctx, args[0], string(summary))
			})
		},
	}
}

func run(ctx context.Context, g *globals, call func(context.Context, *requester.Client) (string, error)) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := call(ctx, c)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
