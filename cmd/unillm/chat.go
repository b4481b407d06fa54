package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/voocel/unillm"
)

type chatFlags struct {
	model       string
	system      string
	stream      bool
	showUsage   bool
	temperature float64
	maxTokens   int
	reasoning   string
	jsonMode    bool
}

func newChatCmd(a *app) *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send one prompt and print the reply",
		Long:  "Send one prompt and print the reply. With no prompt argument the prompt is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}

			client, err := a.newClient(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			req := unillm.NewChatRequest(unillm.UserMessage(prompt)).WithSystem(f.system)
			out := cmd.OutOrStdout()

			var resp *unillm.ChatResponse
			if f.stream {
				stream, err := client.OpenChatStream(cmd.Context(), f.model, req, opts)
				if err != nil {
					return err
				}
				resp, err = unillm.CollectStreamWithCallbacks(stream, unillm.StreamCallbacks{
					OnContent: func(text string) { fmt.Fprint(out, text) },
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
			} else {
				resp, err = client.SendChat(cmd.Context(), f.model, req, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, resp.Content)
			}

			if f.showUsage {
				fmt.Fprintln(cmd.ErrOrStderr(), usageTable(resp))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.model, "model", "m", "gpt-4o-mini", "model, optionally namespaced as provider::model")
	flags.StringVarP(&f.system, "system", "s", "", "system prompt")
	flags.BoolVar(&f.stream, "stream", false, "stream the reply as it is generated")
	flags.BoolVarP(&f.showUsage, "usage", "u", false, "print token usage to stderr")
	flags.Float64VarP(&f.temperature, "temperature", "t", 0, "sampling temperature")
	flags.IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	flags.StringVarP(&f.reasoning, "reasoning", "r", "", "reasoning effort: low, medium, high or a token budget")
	flags.BoolVar(&f.jsonMode, "json", false, "request a JSON object reply")
	return cmd
}

// options turns explicitly set flags into ChatOptions, leaving everything
// else to the configured defaults.
func (f chatFlags) options(cmd *cobra.Command) (unillm.ChatOptions, error) {
	var opts unillm.ChatOptions
	if cmd.Flags().Changed("temperature") {
		opts = opts.WithTemperature(f.temperature)
	}
	if cmd.Flags().Changed("max-tokens") {
		opts = opts.WithMaxTokens(f.maxTokens)
	}
	if f.reasoning != "" {
		effort, err := unillm.ParseReasoningEffort(f.reasoning)
		if err != nil {
			return opts, fmt.Errorf("--reasoning: %w", err)
		}
		opts = opts.WithReasoningEffort(effort)
	}
	if f.jsonMode {
		opts = opts.WithResponseFormat(unillm.JSONMode())
	}
	if f.stream || f.showUsage {
		opts = opts.WithCaptureUsage(true)
	}
	return opts, nil
}

func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("a prompt is required")
	}
	return prompt, nil
}

func usageTable(resp *unillm.ChatResponse) string {
	table := uitable.New()
	table.RightAlign(0)
	table.Separator = " "
	table.AddRow("model:", resp.Model.String())
	if resp.ProviderModel.Name != "" && resp.ProviderModel.Name != resp.Model.Name {
		table.AddRow("served by:", resp.ProviderModel.Name)
	}
	table.AddRow("finish:", resp.FinishReason)
	table.AddRow("prompt tokens:", resp.Usage.PromptTokens)
	table.AddRow("completion tokens:", resp.Usage.CompletionTokens)
	if resp.Usage.ReasoningTokens > 0 {
		table.AddRow("reasoning tokens:", resp.Usage.ReasoningTokens)
	}
	table.AddRow("total tokens:", resp.Usage.TotalTokens)
	return table.String()
}
