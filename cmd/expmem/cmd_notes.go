package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/expmem/category"
	"github.com/becomeliminal/expmem/memory"
)

// textFlag returns the flag value, or the contents of the file named by the
// matching -file flag when that is set.
func textFlag(cmd *cobra.Command, name string) (string, error) {
	if path, _ := cmd.Flags().GetString(name + "-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read --%s-file: %w", name, err)
		}
		return string(data), nil
	}
	v, _ := cmd.Flags().GetString(name)
	return v, nil
}

func addTextFlag(cmd *cobra.Command, name, usage string) {
	cmd.Flags().String(name, "", usage)
	cmd.Flags().String(name+"-file", "", "read "+name+" from a file")
}

func newAddCmd(a *app) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a specific note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			description, err := textFlag(cmd, "description")
			if err != nil {
				return err
			}
			if description == "" {
				return errors.New("add: --description or --description-file is required")
			}
			analysis, err := textFlag(cmd, "analysis")
			if err != nil {
				return err
			}
			artifact, err := textFlag(cmd, "artifact")
			if err != nil {
				return err
			}

			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			id := s.AddSpecific(cmd.Context(), description, analysis, artifact, category.Normalize(tag))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "category", "", "category tag, e.g. MT_MR_TA")
	_ = cmd.MarkFlagRequired("category")
	addTextFlag(cmd, "description", "problem description")
	addTextFlag(cmd, "analysis", "analysis behind the solution")
	addTextFlag(cmd, "artifact", "solution artifact")
	return cmd
}

func newAddAbstractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-abstract <category> <summary...>",
		Short: "Add an abstract note",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			id := s.AddAbstract(cmd.Context(), strings.Join(args[1:], " "), category.Normalize(args[0]))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete notes of either kind",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			var missing []string
			for _, id := range args {
				if s.DeleteSpecific(cmd.Context(), id) || s.DeleteAbstract(cmd.Context(), id) {
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
					continue
				}
				missing = append(missing, id)
			}
			if len(missing) > 0 {
				return fmt.Errorf("delete: unknown ids: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		kind       string
		maxLength  int
		categories bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			if categories {
				fmt.Fprint(cmd.OutOrStdout(), formatCategories(s.Categories(), s.SpecificNotes()))
				return nil
			}
			var notes []memory.Note
			if kind == "" || kind == string(memory.KindSpecific) {
				for _, n := range s.SpecificNotes() {
					notes = append(notes, n)
				}
			}
			if kind == "" || kind == string(memory.KindAbstract) {
				for _, n := range s.AbstractNotes() {
					notes = append(notes, n)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), formatNotes(notes, maxLength))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only list specific or abstract notes")
	cmd.Flags().IntVar(&maxLength, "max-length", 400, "truncate each note to this many characters (0 = no limit)")
	cmd.Flags().BoolVar(&categories, "categories", false, "print each category with its number of specific notes")
	return cmd
}

// formatCategories prints one "<category>\t<count>" line per category.
func formatCategories(tags []string, notes []*memory.SpecificNote) string {
	if len(tags) == 0 {
		return "No notes found.\n"
	}
	counts := make(map[string]int)
	for _, n := range notes {
		counts[n.Category()]++
	}
	var b strings.Builder
	for _, tag := range tags {
		fmt.Fprintf(&b, "%s\t%d\n", tag, counts[tag])
	}
	return b.String()
}

// formatNotes renders notes for CLI output.
func formatNotes(notes []memory.Note, maxLength int) string {
	if len(notes) == 0 {
		return "No notes found.\n"
	}
	var b strings.Builder
	for i, n := range notes {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, n.Kind(), n.ID())
		for _, line := range strings.Split(n.Format(maxLength), "\n") {
			fmt.Fprintf(&b, "   %s\n", line)
		}
	}
	return b.String()
}

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance <category> <category>",
		Short: "Print the distance between two categories",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y := category.Normalize(args[0]), category.Normalize(args[1])
			for _, tag := range []string{x, y} {
				if _, err := category.Parse(tag); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), category.Distance(x, y))
			return nil
		},
	}
}
