// Command catalog-lint checks wizard definition files. With no arguments it
// checks the wizards built into the service.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/catalog"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:           "catalog-lint [file...]",
		Short:         "Check wizard definition files",
		Long:          `Parses wizard YAML files and reports schema paths that do not resolve against their step's shape.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return lintBuiltin(out, verbose)
			}
			return lintFiles(out, args, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list the steps of every valid wizard")
	return cmd
}

func lintBuiltin(out io.Writer, verbose bool) error {
	c, err := catalog.Load()
	if err != nil {
		fmt.Fprintf(out, "✗ builtin: %v\n", err)
		return err
	}
	for _, w := range c.Wizards() {
		report(out, "builtin", w, verbose)
	}
	return nil
}

func lintFiles(out io.Writer, patterns []string, verbose bool) error {
	failed := 0
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			matches = []string{pattern}
		}
		for _, path := range matches {
			raw, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", path, err)
				failed++
				continue
			}
			w, err := catalog.Parse(raw)
			if err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", path, err)
				failed++
				continue
			}
			report(out, path, w, verbose)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d wizard file(s) failed", failed)
	}
	return nil
}

func report(out io.Writer, source string, w *catalog.Wizard, verbose bool) {
	reg := w.Definition.Registry
	fmt.Fprintf(out, "✓ %s: %s (%d steps)\n", source, w.Kind, reg.Len())
	if !verbose {
		return
	}
	for _, s := range reg.Steps() {
		fmt.Fprintf(out, "    %d. %s [%s] %d field(s)\n", s.Order, s.Title, s.ID, len(s.Schema))
	}
}
