package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/brdflow/pkg/extract"
)

func newSectionsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sections [TEMPLATE]",
		Short: "Print the sections extracted from a BRD template",
		Long:  `Prints the ordered sections a run would use for TEMPLATE. Without a template the built-in default sections are printed.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			sections, err := extract.TemplateSections(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sections)
			}
			for i, s := range sections {
				fmt.Fprintf(out, "%2d. %s", i+1, s.Name)
				if len(s.RequiredFields) > 0 {
					fmt.Fprintf(out, " [%s]", strings.Join(s.RequiredFields, ", "))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
