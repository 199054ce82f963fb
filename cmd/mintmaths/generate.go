package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/lithammer/shortuuid/v4"
	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/mintmaths/internal/profile"
	"github.com/hrygo/mintmaths/server/service/practice"
	"github.com/hrygo/mintmaths/store"
)

const defaultQuestionCount = 10

type outputFlags struct {
	out         string
	noSolutions bool
	export      string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "output PDF path (default: mintmaths_questions_<id>.pdf)")
	cmd.Flags().BoolVar(&o.noSolutions, "no-solutions", false, "leave solution pages out (default from MINTMATHS_INCLUDE_SOLUTIONS)")
	cmd.Flags().StringVar(&o.export, "export", "", "also list the questions in a sheet of this .xlsx workbook")
}

// includeSolutions lets an explicit --no-solutions override the profile.
func (o *outputFlags) includeSolutions(cmd *cobra.Command, p *profile.Profile) bool {
	if cmd.Flags().Changed("no-solutions") {
		return !o.noSolutions
	}
	return p.IncludeSolutions
}

// write saves the document and prints what went into it.
func (o *outputFlags) write(w io.Writer, res *practice.Result) error {
	fmt.Fprintln(w, "Selected questions:")
	for i, q := range res.Selection {
		fmt.Fprintf(w, "%3d. %s\n", i+1, q.Title())
	}

	path := o.out
	if path == "" {
		path = fmt.Sprintf("mintmaths_questions_%s.pdf", shortuuid.New())
	}
	if err := atomic.WriteFile(path, bytes.NewReader(res.Document.Body)); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	fmt.Fprintf(w, "Saved %s (%d bytes)\n", path, res.Document.Size)

	if o.export != "" {
		sheet, err := store.ExportSelection(o.export, res.Selection)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Exported to %s, sheet %q\n", o.export, sheet)
	}
	return nil
}

func registerFilterFlags(cmd *cobra.Command, f *store.Filter) {
	cmd.Flags().IntVar(&f.Year, "year", 0, "only questions from this year")
	cmd.Flags().StringVar(&f.Topic, "topic", "", "only questions on this topic (case-insensitive)")
	cmd.Flags().StringVar(&f.Paper, "paper", "", "only questions from this paper (case-insensitive)")
	cmd.Flags().StringVar(&f.Expr, "where", "", `filter expression over id, year, topic and paper, e.g. 'year >= 2020 && topic != "Number"'`)
}

func newGenerateCmd(v *viper.Viper) *cobra.Command {
	var (
		filter store.Filter
		output outputFlags
		count  int
		sorted bool
		fresh  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Draw random questions and build a practice PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newProfile(v)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), p, appOptions{includeSolutions: output.includeSolutions(cmd, p), useHistory: fresh})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.service.Generate(cmd.Context(), practice.Request{
				Filter:         filter,
				Count:          count,
				SortForDisplay: sorted,
			})
			if err != nil {
				return err
			}
			a.logStats()
			return output.write(cmd.OutOrStdout(), res)
		},
	}
	registerFilterFlags(cmd, &filter)
	output.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", defaultQuestionCount, "number of questions")
	cmd.Flags().BoolVar(&sorted, "sorted", false, "order questions by year and paper instead of draw order")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "prefer questions not handed out before; history is kept in the data directory")
	return cmd
}

func newRebuildCmd(v *viper.Viper) *cobra.Command {
	var (
		filter  store.Filter
		output  outputFlags
		ids     []string
		replace int
		fresh   bool
	)
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Build the PDF for questions chosen earlier, optionally swapping one out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newProfile(v)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), p, appOptions{includeSolutions: output.includeSolutions(cmd, p), useHistory: fresh})
			if err != nil {
				return err
			}
			defer a.Close()

			var res *practice.Result
			if replace > 0 {
				selection, err := a.service.Resolve(ids)
				if err != nil {
					return err
				}
				res, err = a.service.Replace(cmd.Context(), filter, selection, replace-1)
				if err != nil {
					return err
				}
			} else if res, err = a.service.Rebuild(cmd.Context(), filter, ids); err != nil {
				return err
			}
			a.logStats()
			return output.write(cmd.OutOrStdout(), res)
		},
	}
	registerFilterFlags(cmd, &filter)
	output.register(cmd)
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "question ids in layout order")
	cmd.Flags().IntVar(&replace, "replace", 0, "1-based position of a question to swap for another matching one")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "pick the replacement from questions not handed out before and record it")
	_ = cmd.MarkFlagRequired("ids")
	return cmd
}
