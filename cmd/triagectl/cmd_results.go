package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/internal/results"
)

var (
	resultsPlain   bool
	resultsDisease string
	resultsStyle   string
)

// resultsCmd reopens the last result of the session
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Browse the last result of the session",
	Long: `Restores the last scanned result from the session cache and shows the
ranked diseases with the reference text of the selected one.

Interactive by default; --plain prints the result once and exits.`,
	RunE: runResults,
}

// resultsResetCmd clears the session cache
var resultsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the cached result of the session",
	RunE:  runResultsReset,
}

func init() {
	resultsCmd.Flags().BoolVar(&resultsPlain, "plain", false, "Print once instead of the interactive view")
	resultsCmd.Flags().StringVarP(&resultsDisease, "disease", "d", "", "Disease to show (with --plain)")
	resultsCmd.Flags().StringVar(&resultsStyle, "style", "auto", "Markdown style: auto | dark | light | notty")
	resultsCmd.AddCommand(resultsResetCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	if resultsPlain {
		return printResults(cmd)
	}
	return runResultsView(cmd)
}

func runResultsView(cmd *cobra.Command) error {
	updates := make(chan results.Snapshot, 16)
	session := cache.NewSession(app.Cache, app.SessionID, app.Logger)
	view := results.NewView(session, app.Client, app.Config.Language, chanListener(updates), app.Logger)

	model := newResultsModel(cmd.Context(), view, updates, resultsStyle)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	_, err := p.Run()
	return err
}

func printResults(cmd *cobra.Command) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	session := cache.NewSession(app.Cache, app.SessionID, app.Logger)
	view := results.NewView(session, app.Client, app.Config.Language, nil, app.Logger)

	snap, err := view.Load(ctx)
	if err == nil && resultsDisease != "" {
		snap, err = view.Select(ctx, resultsDisease)
	}
	if snap.Prediction == nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, d := range snap.Prediction.TopDiseases {
		marker := " "
		if d.Disease == snap.Selected {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %d. %-28s %6.2f%%\n", marker, i+1, d.Disease, d.Probability*100)
	}
	fmt.Fprintln(out)

	if err != nil {
		return fmt.Errorf("details for %s unavailable: %w", snap.Selected, err)
	}
	if snap.Detail != nil {
		fmt.Fprintln(out, renderMarkdown(snap.Detail.Details))
	}
	return nil
}

func runResultsReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := cache.NewSession(app.Cache, app.SessionID, app.Logger).Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Session cache cleared")
	return nil
}

// renderMarkdown рисует markdown для терминала, при ошибке отдает исходный текст
func renderMarkdown(md string) string {
	r := newRenderer(resultsStyle, 80)
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
