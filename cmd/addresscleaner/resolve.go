package main

import (
	"encoding/json"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/postcodecheck/addresscleaner/internal/domain"
)

func createResolveCmd() *cobra.Command {
	var (
		addr  domain.Address
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a single address",
		Long: `Resolve one address given as separate fields. With --debug the normalized
query, every retrieved candidate and the chosen winner are dumped.`,
		Example: `  addresscleaner resolve --references postcodes.csv --street "Dorpstraat 12" --city Ede
  addresscleaner resolve --description "Dorpstraat 12 te Ede" --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver, err := newResolver(ctx)
			if err != nil {
				return err
			}

			if debug {
				exp, err := resolver.Explain(ctx, addr)
				if err != nil {
					return err
				}
				cs := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
				cs.Fdump(cmd.OutOrStdout(), exp)
				return nil
			}

			res, err := resolver.Resolve(ctx, addr)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr.Postcode, "postcode", "", "postcode, e.g. 1234AB")
	f.StringVar(&addr.City, "city", "", "city")
	f.StringVar(&addr.Municipality, "municipality", "", "municipality")
	f.StringVar(&addr.Street, "street", "", "street, optionally with house number")
	f.StringVar(&addr.HouseNumber, "housenumber", "", "house number")
	f.StringVar(&addr.HouseNumberAffix, "affix", "", "house number affix")
	f.StringVar(&addr.Description, "description", "", "free text describing the address")
	f.BoolVar(&debug, "debug", false, "dump the full explanation of the resolution")
	addReferencesFlag(cmd)

	return cmd
}
