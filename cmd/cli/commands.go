package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/analytics"
	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/mail"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/spf13/cobra"
)

func newFetchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download statement attachments and store them without extracting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				src, err := a.MailSource(ctx)
				if err != nil {
					return err
				}
				attachments, err := src.Fetch(ctx)
				if err != nil {
					return err
				}

				var stored, skipped int
				for _, att := range attachments {
					name := mail.StatementFilename(att.Filename, att.ReceivedAt)
					id, err := a.Ingestor.Register(ctx, name, att.Data, att.ReceivedAt)
					var dup *domain.DuplicateStatementError
					switch {
					case errors.As(err, &dup):
						skipped++
						fmt.Fprintf(out, "  skip  %s (already ingested as %s)\n", name, dup.StatementID)
					case err != nil:
						return err
					default:
						stored++
						fmt.Fprintf(out, "  ok    %s -> %s\n", name, id)
					}
				}
				fmt.Fprintf(out, "\nFetched %d attachments: %d stored, %d skipped\n", len(attachments), stored, skipped)
				return nil
			})
		},
	}
}

func newIngestCmd(g *globalFlags) *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "ingest [file.pdf ...]",
		Short: "Extract statements into transactions",
		Long: "With file arguments, ingests those PDFs. With --pending, re-processes every stored\n" +
			"statement that is not yet processed. Otherwise fetches from the mail source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				var (
					report pipeline.Report
					err    error
				)
				switch {
				case pending:
					report, err = a.Ingestor.ProcessPending(ctx)
				case len(args) > 0:
					report, err = a.Ingestor.IngestAll(ctx, fileSource(args))
				default:
					src, srcErr := a.MailSource(ctx)
					if srcErr != nil {
						return srcErr
					}
					report, err = a.Ingestor.IngestAll(ctx, src)
				}
				if err != nil {
					return err
				}
				printReport(out, report)
				if report.Failed > 0 {
					return fmt.Errorf("%d statements failed and were left unprocessed", report.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "Process stored statements that are not yet processed")
	return cmd
}

// fileSource serves local files given on the command line.
type fileSource []string

func (f fileSource) Fetch(ctx context.Context) ([]mail.Attachment, error) {
	out := make([]mail.Attachment, 0, len(f))
	for _, path := range f {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Fetch: %w", err)
		}
		var received time.Time
		if info, err := os.Stat(path); err == nil {
			received = info.ModTime()
		}
		out = append(out, mail.Attachment{
			Filename:   mail.SanitizeFilename(filepath.Base(path)),
			Data:       data,
			ReceivedAt: received,
		})
	}
	return out, nil
}

func printReport(out io.Writer, r pipeline.Report) {
	fmt.Fprintf(out, "Ingested: %d\nSkipped:  %d\nFailed:   %d\nTransactions: %d\n",
		r.Ingested, r.Skipped, r.Failed, r.Transactions)
}

func newParseCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file.pdf>",
		Short: "Print the transactions extracted from a statement without storing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return parseStatement(cmd.Context(), cmd.OutOrStdout(), data, cfg.PDFPassword)
		},
	}
}

func parseStatement(ctx context.Context, out io.Writer, data []byte, password string) error {
	doc, err := extract.Open(data, password)
	if err != nil {
		return err
	}
	if summary, err := doc.Summary(); err == nil {
		fmt.Fprintf(out, "Period: %s to %s\nPrevious balance: %s\nNew balance: %s\n\n",
			summary.PeriodStart, summary.PeriodEnd, summary.PreviousBalance.StringFixed(2), summary.NewBalance.StringFixed(2))
	}

	lines, err := doc.ExtractAll(ctx)
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Fprintf(out, "%s  %s  %-6s %10s  %s\n",
			l.TransactionDate, l.PostedDate, l.Direction, l.Amount.StringFixed(2), l.Description)
	}
	fmt.Fprintf(out, "\n%d transactions\n", len(lines))
	return nil
}

func newCategorizeCmd(g *globalFlags) *cobra.Command {
	var (
		batchSize int
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Label uncategorized transactions with the language model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				c, err := a.Categorizer(ctx, force)
				if err != nil {
					return err
				}
				if err := c.Health(ctx); err != nil {
					return fmt.Errorf("model is not reachable: %w", err)
				}
				if batchSize == 0 {
					batchSize = a.Config.CategorizeBatchSize
				}
				n, err := c.CategorizeUncategorized(ctx, batchSize)
				fmt.Fprintf(out, "Categorized %d transactions\n", n)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&batchSize, "batch-size", "n", 0, "Maximum transactions to label (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-label transactions that already have a category")
	cmd.Flags().Int("categorize-workers", 0, "Concurrent model calls")
	return cmd
}

type dateFlags struct {
	start, end string
}

func (d *dateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.end, "end", "", "End date (YYYY-MM-DD)")
}

func (d *dateFlags) filter() (store.TransactionFilter, error) {
	var f store.TransactionFilter
	var err error
	if d.start != "" {
		if f.Start, err = civil.ParseDate(d.start); err != nil {
			return f, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if d.end != "" {
		if f.End, err = civil.ParseDate(d.end); err != nil {
			return f, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return f, nil
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	var dates dateFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print spending totals, categories and the monthly series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := dates.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				txs, err := a.Store.ListTransactions(ctx, filter)
				if err != nil {
					return err
				}
				printSummary(out, analytics.Summarize(txs))
				return nil
			})
		},
	}
	dates.register(cmd)
	return cmd
}

func printSummary(out io.Writer, s analytics.Summary) {
	fmt.Fprintf(out, "Transactions:   %d (%d debits, %d credits)\n", s.TransactionCount, s.DebitCount, s.CreditCount)
	fmt.Fprintf(out, "Total spending: %s\n", s.TotalSpending.StringFixed(2))
	fmt.Fprintf(out, "Total credits:  %s\n", s.TotalCredits.StringFixed(2))
	fmt.Fprintf(out, "Average debit:  %s\n", s.AvgDebit.StringFixed(2))

	if len(s.Categories) > 0 {
		fmt.Fprintln(out, "\nBy category:")
		for _, c := range s.Categories {
			fmt.Fprintf(out, "  %-22s %10s  %5s%%\n", c.Category, c.Total.StringFixed(2), c.Percent.StringFixed(1))
		}
	}
	if len(s.MonthlySeries) > 0 {
		fmt.Fprintln(out, "\nBy month:")
		for _, m := range s.MonthlySeries {
			fmt.Fprintf(out, "  %s  %10s\n", m.Month, m.Total.StringFixed(2))
		}
	}
}

func newAnomaliesCmd(g *globalFlags) *cobra.Command {
	var dates dateFlags
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List duplicate and unusually large transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := dates.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				txs, err := a.Store.ListTransactions(ctx, filter)
				if err != nil {
					return err
				}
				printAnomalies(out, analytics.DetectAnomalies(txs))
				return nil
			})
		},
	}
	dates.register(cmd)
	return cmd
}

func printAnomalies(out io.Writer, anomalies []analytics.Anomaly) {
	if len(anomalies) == 0 {
		fmt.Fprintln(out, "No anomalies detected.")
		return
	}
	for _, an := range anomalies {
		tx := an.Transaction
		fmt.Fprintf(out, "%s  %-9s %10s  %-40s %s\n",
			tx.TransactionDate, an.Kind, tx.Amount.StringFixed(2), tx.Description, an.Reason)
	}
	fmt.Fprintf(out, "\n%d anomalies\n", len(anomalies))
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Run the insight roles and save the analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				r, err := a.Requestor(ctx)
				if err != nil {
					return err
				}
				artifact, err := r.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, *artifact.Analysis)
				return nil
			})
		},
	}
}

func newDeleteStatementCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-statement <id>",
		Short: "Delete a statement with its transactions and stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				if err := a.Ledger.DeleteStatement(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted statement %s\n", args[0])
				return nil
			})
		},
	}
}

func newClearCmd(g *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every transaction and statement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "This deletes all statements and transactions. Type 'yes' to continue: ")
				var answer string
				_, _ = fmt.Fscanln(cmd.InOrStdin(), &answer)
				if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				if err := a.Store.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "All statements and transactions deleted.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the store and the model are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, out io.Writer) error {
				ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()

				var failed []string
				for _, check := range []struct {
					name string
					fn   func(context.Context) error
				}{
					{"store", a.CheckStore},
					{"model", a.CheckModel},
				} {
					if err := check.fn(ctx); err != nil {
						fmt.Fprintf(out, "%-6s FAIL  %v\n", check.name, err)
						failed = append(failed, check.name)
						continue
					}
					fmt.Fprintf(out, "%-6s ok\n", check.name)
				}
				if len(failed) > 0 {
					return fmt.Errorf("unhealthy: %s", strings.Join(failed, ", "))
				}
				return nil
			})
		},
	}
}
