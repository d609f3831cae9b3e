package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/raulshma/tech-ticker-sub007/internal/config"
	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/history"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
)

type historyOptions struct {
	productID string
	seller    string
	since     time.Duration
	limit     int
	offset    int
}

func historyCommand() *cobra.Command {
	var opts historyOptions
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded prices as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.productID, "product", "", "canonical product id")
	flags.StringVar(&opts.seller, "seller", "", "seller name")
	flags.DurationVar(&opts.since, "since", 0, "only points observed within this window (e.g. 72h)")
	flags.IntVar(&opts.limit, "limit", database.DefaultHistoryLimit, "page size")
	flags.IntVar(&opts.offset, "offset", 0, "rows to skip")
	return cmd
}

func runHistory(cmd *cobra.Command, opts historyOptions) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.NewPostgresConnection(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	filter := database.HistoryFilter{
		ProductID: opts.productID,
		Seller:    opts.seller,
		Limit:     opts.limit,
		Offset:    opts.offset,
	}
	if opts.since > 0 {
		filter.From = time.Now().Add(-opts.since)
	}

	recorder := history.NewRecorder(database.NewPriceHistoryRepository(db), logger.NewNop())
	page, err := recorder.Query(cmd.Context(), filter)
	if err != nil {
		return err
	}

	renderHistory(cmd.OutOrStdout(), page)
	return nil
}

// renderHistory writes page as a table, newest first.
func renderHistory(w io.Writer, page *history.Page) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Observed", "Product", "Seller", "Price", "Stock", "Stock Text"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, WidthMax: 40},
	})

	for _, p := range page.Points {
		stockText := ""
		if p.OriginalStockStatus != nil {
			stockText = *p.OriginalStockStatus
		}
		t.AppendRow(table.Row{
			p.Timestamp.UTC().Format(time.RFC3339),
			p.CanonicalProductID,
			p.SellerName,
			fmt.Sprintf("%.2f", p.Price),
			p.StockStatus,
			stockText,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "Showing", fmt.Sprintf("%d of %d", len(page.Points), page.Total)})
	t.Render()
}
