package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/mintmaths/store"
)

func newFacetsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "facets",
		Short: "List the years, papers and topics in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newProfile(v)
			if err != nil {
				return err
			}
			catalog, err := store.LoadCatalog(p.CatalogPath)
			if err != nil {
				return err
			}

			f := catalog.Facets()
			years := make([]string, 0, len(f.Years))
			for _, y := range f.Years {
				years = append(years, strconv.Itoa(y))
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Catalog:   %s\n", catalog.Source())
			fmt.Fprintf(w, "Questions: %d\n", catalog.Len())
			fmt.Fprintf(w, "Years:     %s\n", strings.Join(years, ", "))
			fmt.Fprintf(w, "Papers:    %s\n", strings.Join(f.Papers, ", "))
			fmt.Fprintf(w, "Topics:    %s\n", strings.Join(f.Topics, ", "))
			return nil
		},
	}
}
