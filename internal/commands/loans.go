package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kuberx/internal/core"
	"kuberx/internal/search"
	"kuberx/internal/services"
)

func newAddCommand(open Opener) *cobra.Command {
	values := make([]string, core.NumColumns)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a new active loan",
		Long: "Append a new active loan. Flags are named after the sheet header;\n" +
			"a missing recordId is generated and the date may be in any supported format.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			row := make([]string, core.NumColumns)
			copy(row, values)
			row[core.ColStatus] = ""
			loan := core.LoanFromRow(row)

			return withService(cmd.Context(), open, func(svc *services.LoanService) error {
				created, err := svc.CreateLoan(cmd.Context(), loan)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), created)
			})
		},
	}
	for i, key := range core.Header {
		if i == core.ColStatus {
			continue
		}
		cmd.Flags().StringVar(&values[i], key, "", key)
	}
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newCloseCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "close ROW",
		Short: "Mark the loan on a sheet row as closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := strconv.Atoi(args[0])
			if err != nil || row < 2 {
				return fmt.Errorf("invalid row %q: rows start at 2", args[0])
			}
			return withService(cmd.Context(), open, func(svc *services.LoanService) error {
				if err := svc.CloseLoan(cmd.Context(), row); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Closed loan on row %d\n", row)
				return nil
			})
		},
	}
}

func newExtractCommand(open Opener) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "extract TEXT...",
		Short: "Turn free text describing a loan into a structured draft",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text is required")
			}
			return withService(cmd.Context(), open, func(svc *services.LoanService) error {
				loan, err := svc.Extract(cmd.Context(), text)
				if err != nil {
					return err
				}
				draft := loanFields(loan)
				if !save {
					return writeJSON(cmd.OutOrStdout(), draft)
				}
				created, err := svc.CreateLoan(cmd.Context(), loan)
				if err != nil {
					return fmt.Errorf("saving extracted loan: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"loan":    draft,
					"created": created,
				})
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "append the extracted loan to the ledger")

	return cmd
}

type hitView struct {
	Row      int     `json:"row"`
	RecordID string  `json:"recordId"`
	Name     string  `json:"name"`
	Ward     string  `json:"wardArea"`
	Amount   string  `json:"amount"`
	Status   string  `json:"loanStatus"`
	Score    float64 `json:"score"`
}

func newSearchCommand(open Opener) *cobra.Command {
	var mode, field string
	var topK int

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search loans by text, meaning or model judgement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.SearchRequest{
				Query: strings.TrimSpace(strings.Join(args, " ")),
				TopK:  topK,
			}
			var err error
			if req.Mode, err = search.ParseMode(mode); err != nil {
				return err
			}
			if field != "" {
				if req.Field, err = search.ParseField(field); err != nil {
					return err
				}
			}
			if topK < 1 {
				return fmt.Errorf("invalid top-k %d: must be positive", topK)
			}

			return withService(cmd.Context(), open, func(svc *services.LoanService) error {
				hits, err := svc.Search(cmd.Context(), req)
				if err != nil {
					return err
				}
				views := make([]hitView, 0, len(hits))
				for _, h := range hits {
					l := h.Record.Loan
					views = append(views, hitView{
						Row:      h.Record.Row,
						RecordID: l.RecordID,
						Name:     l.DisplayName(),
						Ward:     l.Ward,
						Amount:   l.Amount,
						Status:   string(l.Status),
						Score:    h.Score,
					})
				}
				return writeJSON(cmd.OutOrStdout(), views)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "basic", "search mode: basic, semantic or deep")
	cmd.Flags().StringVar(&field, "field", "", "restrict basic search to one field: all, name, ward, mobile, recordId")
	cmd.Flags().IntVar(&topK, "top-k", search.DefaultTopK, "maximum number of semantic results")

	return cmd
}

// loanFields keys a loan by the sheet header names.
func loanFields(l core.Loan) map[string]string {
	row := l.Row()
	out := make(map[string]string, len(core.Header))
	for i, key := range core.Header {
		out[key] = row[i]
	}
	return out
}
