package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/voocel/unillm"
)

func newCapsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "caps model...",
		Short: "Describe what a model can do",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			for i, name := range args {
				model, err := client.Capabilities(name)
				if err != nil {
					return err
				}
				if asJSON {
					data, err := json.MarshalIndent(model, "", "  ")
					if err != nil {
						return fmt.Errorf("marshal capabilities: %w", err)
					}
					fmt.Fprintln(out, string(data))
					continue
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, capsTable(model))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the descriptor as JSON")
	return cmd
}

func capsTable(m unillm.Model) string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("model:", unillm.NewModelIden(m.Provider, m.ID).String())
	table.AddRow("max input tokens:", tokenLimit(m.MaxInputTokens))
	table.AddRow("max output tokens:", tokenLimit(m.MaxOutputTokens))
	table.AddRow("input:", modalities(m.InputModalities))
	table.AddRow("output:", modalities(m.OutputModalities))
	table.AddRow("tool calls:", yesNo(m.SupportsToolCalls))
	table.AddRow("json mode:", yesNo(m.SupportsJSONMode))
	table.AddRow("streaming:", yesNo(m.SupportsStreaming))
	table.AddRow("reasoning:", reasoningSummary(m))

	keys := make([]string, 0, len(m.AdditionalProperties))
	for k := range m.AdditionalProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		table.AddRow(k+":", fmt.Sprint(m.AdditionalProperties[k]))
	}
	return table.String()
}
