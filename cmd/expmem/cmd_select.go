package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/expmem/category"
	"github.com/becomeliminal/expmem/memory"
	"github.com/becomeliminal/expmem/memory/seed"
)

func newSelectCmd(a *app) *cobra.Command {
	var (
		tag       string
		k         int
		tolerance int
		abstract  bool
		skipExact bool
		maxLength int
	)
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select notes by category, optionally refined by content",
		Long: "Without --description, returns up to k specific notes from the nearest non-empty distance level.\n" +
			"With --description, large buckets are refined by content similarity per category.\n" +
			"With --abstract, selects abstract notes by accumulating distance levels.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			description, err := textFlag(cmd, "description")
			if err != nil {
				return err
			}
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			target := category.Normalize(tag)

			var notes []memory.Note
			switch {
			case abstract:
				for _, n := range s.SelectAbstractByDistance(target, k, tolerance, skipExact) {
					notes = append(notes, n)
				}
			case description != "":
				for _, n := range s.SelectByCategoryContent(cmd.Context(), description, target, k, tolerance) {
					notes = append(notes, n)
				}
			default:
				for _, n := range s.SelectByCategory(target, k, tolerance) {
					notes = append(notes, n)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), formatNotes(notes, maxLength))
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "category", "", "target category tag")
	_ = cmd.MarkFlagRequired("category")
	cmd.Flags().IntVarP(&k, "k", "k", 3, "number of notes (target count with --abstract)")
	cmd.Flags().IntVar(&tolerance, "tolerance", 0, "largest category distance to consider")
	cmd.Flags().BoolVar(&abstract, "abstract", false, "select abstract notes")
	cmd.Flags().BoolVar(&skipExact, "skip-exact", false, "with --abstract, start at distance 1")
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "truncate each note to this many characters")
	addTextFlag(cmd, "description", "problem description for content refinement")
	return cmd
}

func newRecallCmd(a *app) *cobra.Command {
	var (
		tag       string
		maxLength int
	)
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Recall memory for a new problem using the configured policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			description, err := textFlag(cmd, "description")
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			s, err := a.store(cmd)
			if err != nil {
				return err
			}

			opts := cfg.RecallOptions()
			if cmd.Flags().Changed("skip-exact") {
				opts.SkipExact, _ = cmd.Flags().GetBool("skip-exact")
			}
			got := s.Recall(cmd.Context(), description, category.Normalize(tag), opts)
			fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\n", got.Mode)
			fmt.Fprint(cmd.OutOrStdout(), formatNotes(got.Notes(), maxLength))
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "category", "", "category of the new problem")
	_ = cmd.MarkFlagRequired("category")
	cmd.Flags().Bool("skip-exact", false, "start the abstract fallback at distance 1")
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "truncate each note to this many characters")
	addTextFlag(cmd, "description", "problem description")
	return cmd
}

func newRecordCmd(a *app) *cobra.Command {
	var (
		tag      string
		accepted bool
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the outcome of an attempt using the configured policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var o memory.Outcome
			for name, dst := range map[string]*string{
				"description": &o.Description,
				"analysis":    &o.Analysis,
				"artifact":    &o.Artifact,
				"summary":     &o.Summary,
			} {
				v, err := textFlag(cmd, name)
				if err != nil {
					return err
				}
				*dst = v
			}
			o.Category = category.Normalize(tag)
			o.Accepted = accepted

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			res := s.RecordOutcome(cmd.Context(), o, cfg.RecordPolicy())

			out := cmd.OutOrStdout()
			if res.SpecificID != "" {
				fmt.Fprintf(out, "specific: %s\n", res.SpecificID)
			}
			if res.AbstractID != "" {
				fmt.Fprintf(out, "abstract: %s\n", res.AbstractID)
			}
			if res.Evolved {
				fmt.Fprintf(out, "evolved:\n%s\n", res.Summary)
			}
			fmt.Fprintf(out, "reinforced: %d, evicted: %d\n", res.Reinforced, res.Evicted)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "category", "", "category of the problem")
	_ = cmd.MarkFlagRequired("category")
	cmd.Flags().BoolVar(&accepted, "accepted", false, "the attempt passed its checks")
	addTextFlag(cmd, "description", "problem description")
	addTextFlag(cmd, "analysis", "analysis behind the attempt")
	addTextFlag(cmd, "artifact", "solution artifact")
	addTextFlag(cmd, "summary", "lessons learned")
	return cmd
}

func newReinforceCmd(a *app) *cobra.Command {
	var extra int
	cmd := &cobra.Command{
		Use:   "reinforce <id>",
		Short: "Reward the nearest neighbors of a specific note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			if _, ok := s.Specific(args[0]); !ok {
				return fmt.Errorf("reinforce: unknown specific note %s", args[0])
			}
			n := s.Reinforce(cmd.Context(), args[0], extra)
			fmt.Fprintf(cmd.OutOrStdout(), "reinforced %d notes\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&extra, "extra", memory.DefaultRecordPolicy.ReinforceExtra, "number of neighbors to reward")
	return cmd
}

func newRetrenchCmd(a *app) *cobra.Command {
	var capacity int
	cmd := &cobra.Command{
		Use:   "retrench",
		Short: "Cap every category at a number of specific notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			n := s.Retrench(cmd.Context(), capacity)
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %d notes\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&capacity, "capacity", memory.DefaultRecordPolicy.Capacity, "notes kept per category")
	return cmd
}

func newEvolveCmd(a *app) *cobra.Command {
	var (
		tag string
		all bool
	)
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Merge a new summary into the abstract notes of a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := textFlag(cmd, "summary")
			if err != nil {
				return err
			}
			description, err := textFlag(cmd, "description")
			if err != nil {
				return err
			}
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			target := category.Normalize(tag)
			out := cmd.OutOrStdout()

			if all {
				merged := s.EvolveAll(cmd.Context(), description, summary, target)
				for _, n := range s.SelectAbstractByCategory(target) {
					if text, ok := merged[n.ID()]; ok {
						fmt.Fprintf(out, "%s:\n%s\n", n.ID(), text)
					}
				}
				if len(merged) == 0 {
					fmt.Fprintln(out, "nothing evolved")
				}
				return nil
			}

			text, ok := s.Evolve(cmd.Context(), description, summary, target)
			if !ok {
				fmt.Fprintln(out, "nothing evolved")
				return nil
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "category", "", "category whose abstract notes evolve")
	_ = cmd.MarkFlagRequired("category")
	cmd.Flags().BoolVar(&all, "all", false, "print every merged summary, not just the last")
	addTextFlag(cmd, "summary", "new summary to merge")
	addTextFlag(cmd, "description", "problem that produced the summary")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <dir>",
		Short: "Import example solutions laid out as <CATEGORY>/prob_<n>_{description,analysis}.txt and prob_<n>*.py",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("seed: %s is not a directory", args[0])
			}
			s, err := a.store(cmd)
			if err != nil {
				return err
			}
			report, err := seed.Import(cmd.Context(), os.DirFS(args[0]), s)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			printSeedReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printSeedReport(w io.Writer, r seed.Report) {
	fmt.Fprintf(w, "added %d notes\n", r.Added)
	for _, name := range r.Incomplete {
		fmt.Fprintf(w, "incomplete: %s\n", name)
	}
}
