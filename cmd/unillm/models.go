package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voocel/unillm"
)

// providerListing is one provider's share of a `models` run.
type providerListing struct {
	kind   unillm.AdapterKind
	models []unillm.Model
	source unillm.ListingSource
}

func newModelsCmd(a *app) *cobra.Command {
	var all, namesOnly bool
	cmd := &cobra.Command{
		Use:   "models [provider...]",
		Short: "List the models each provider offers",
		Long: "List the models each provider offers. Providers that cannot be reached, " +
			"or have no credential, fall back to a built-in table; the SOURCE column says which.",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := selectKinds(args, all)
			if err != nil {
				return err
			}

			client, err := a.newClient(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			listings := make([]providerListing, len(kinds))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, kind := range kinds {
				g.Go(func() error {
					models, src, err := client.ListModels(ctx, kind)
					if err != nil {
						return fmt.Errorf("list %s: %w", kind, err)
					}
					listings[i] = providerListing{kind: kind, models: models, source: src}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if namesOnly {
				for _, l := range listings {
					for _, m := range l.models {
						fmt.Fprintln(cmd.OutOrStdout(), unillm.NewModelIden(l.kind, m.ID).String())
					}
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), modelsTable(listings))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every supported provider")
	cmd.Flags().BoolVar(&namesOnly, "names", false, "print provider::model names only")
	return cmd
}

func selectKinds(args []string, all bool) ([]unillm.AdapterKind, error) {
	if all {
		if len(args) > 0 {
			return nil, errors.New("--all does not take provider arguments")
		}
		return unillm.AllAdapterKinds(), nil
	}
	if len(args) == 0 {
		return nil, errors.New("name at least one provider or pass --all")
	}
	kinds := make([]unillm.AdapterKind, 0, len(args))
	for _, arg := range args {
		kind, err := unillm.ParseAdapterKind(arg)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func modelsTable(listings []providerListing) string {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("PROVIDER", "MODEL", "INPUT", "OUTPUT", "MODALITIES", "TOOLS", "REASONING", "SOURCE")
	for _, l := range listings {
		for _, m := range l.models {
			table.AddRow(
				l.kind,
				m.ID,
				tokenLimit(m.MaxInputTokens),
				tokenLimit(m.MaxOutputTokens),
				modalities(m.InputModalities),
				yesNo(m.SupportsToolCalls),
				reasoningSummary(m),
				l.source,
			)
		}
	}
	return table.String()
}

func tokenLimit(n *int) string {
	if n == nil {
		return "-"
	}
	switch {
	case *n >= 1_000_000 && *n%1_000_000 == 0:
		return fmt.Sprintf("%dM", *n/1_000_000)
	case *n >= 1_000 && *n%1_000 == 0:
		return fmt.Sprintf("%dK", *n/1_000)
	default:
		return fmt.Sprint(*n)
	}
}

func modalities(mods []unillm.Modality) string {
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		names = append(names, m.String())
	}
	return strings.Join(names, ",")
}

func reasoningSummary(m unillm.Model) string {
	if !m.SupportsReasoning {
		return "no"
	}
	if len(m.ReasoningEfforts) == 0 {
		return "yes"
	}
	efforts := make([]string, 0, len(m.ReasoningEfforts))
	for _, e := range m.ReasoningEfforts {
		efforts = append(efforts, e.String())
	}
	return strings.Join(efforts, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
