package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGlossaryCommand(ctx *commandContext) *cobra.Command {
	glossaryCmd := &cobra.Command{
		Use:   "glossary",
		Short: "Terminology glossary utilities",
	}
	glossaryCmd.AddCommand(newGlossaryShowCommand(ctx))
	return glossaryCmd
}

func newGlossaryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List the loaded glossary terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureGlossary()
			if err != nil {
				return err
			}
			if store.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "glossary is empty")
				return nil
			}

			rows := make([][]string, 0, store.Len())
			for _, term := range store.Terms() {
				entry, ok := store.Lookup(term)
				if !ok {
					continue
				}
				rows = append(rows, []string{
					term,
					entry.Target,
					strings.Join(entry.Alternatives, ", "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Term", "Translation", "Alternatives"}, rows))
			fmt.Fprintf(cmd.OutOrStdout(), "%d terms\n", store.Len())
			return nil
		},
	}
}
