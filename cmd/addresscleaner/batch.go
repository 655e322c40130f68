package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/service"
)

func createBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [filename]",
		Short: "Resolve the descriptions of a '|' separated file",
		Long: `Read a '|' separated file whose first column is a free text description,
resolve every line from the description alone and print what was found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver, err := newResolver(ctx)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open batch file: %w", err)
			}
			defer f.Close()

			found, total, err := resolveDescriptions(ctx, resolver, f, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d of %d addresses.\n", found, total)
			return nil
		},
	}
	addReferencesFlag(cmd)
	return cmd
}

// resolveDescriptions resolves the first column of every non-empty line of r
// and reports each outcome to w.
func resolveDescriptions(ctx context.Context, resolver *service.Resolver, r io.Reader, w io.Writer) (found, total int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		description, _, _ := strings.Cut(scanner.Text(), "|")
		description = strings.TrimSpace(description)
		if description == "" {
			continue
		}
		total++

		res, err := resolver.Resolve(ctx, domain.Address{Description: description})
		if err != nil {
			return found, total, fmt.Errorf("line %d: %w", total, err)
		}

		fmt.Fprintln(w, description)
		if !res.Matched {
			fmt.Fprintln(w, "Not Found.")
			continue
		}
		found++
		fmt.Fprintf(w, "%s -> %s -> %s\n", res.Address.City, res.Address.Street, res.Address.HouseNumber)
	}
	if err := scanner.Err(); err != nil {
		return found, total, fmt.Errorf("read batch file: %w", err)
	}
	return found, total, nil
}
