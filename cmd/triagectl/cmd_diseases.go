package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Krimson/xray-triage/pkg/models"
)

var (
	diseaseDescription string
	diseaseSymptoms    []string
	diseaseTreatment   string
	diseaseImageURL    string
)

// diseasesCmd manages the disease catalogue
var diseasesCmd = &cobra.Command{
	Use:   "diseases",
	Short: "Disease catalogue and reference texts",
}

var diseasesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogue entries",
	RunE:  runDiseasesList,
}

var diseasesDetailsCmd = &cobra.Command{
	Use:   "details <name>",
	Short: "Show the reference text of a disease",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiseasesDetails,
}

var diseasesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a catalogue entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiseasesAdd,
}

var diseasesUpdateCmd = &cobra.Command{
	Use:   "update <id> <name>",
	Short: "Replace a catalogue entry",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiseasesUpdate,
}

var diseasesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a catalogue entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiseasesRemove,
}

func init() {
	for _, cmd := range []*cobra.Command{diseasesAddCmd, diseasesUpdateCmd} {
		cmd.Flags().StringVar(&diseaseDescription, "description", "", "Description")
		cmd.Flags().StringSliceVar(&diseaseSymptoms, "symptom", nil, "Symptom (repeatable)")
		cmd.Flags().StringVar(&diseaseTreatment, "treatment", "", "Treatment")
		cmd.Flags().StringVar(&diseaseImageURL, "image-url", "", "Illustration URL")
	}
	diseasesDetailsCmd.Flags().StringVar(&resultsStyle, "style", "auto", "Markdown style: auto | dark | light | notty")

	diseasesCmd.AddCommand(diseasesListCmd)
	diseasesCmd.AddCommand(diseasesDetailsCmd)
	diseasesCmd.AddCommand(diseasesAddCmd)
	diseasesCmd.AddCommand(diseasesUpdateCmd)
	diseasesCmd.AddCommand(diseasesRemoveCmd)
}

func runDiseasesList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	diseases, err := app.Client.ListDiseases(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSYMPTOMS")
	for _, d := range diseases {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Name, truncate(strings.Join(d.Symptoms, ", "), 60))
	}
	return w.Flush()
}

func runDiseasesDetails(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	detail, err := app.Client.FetchDiseaseDetails(ctx, args[0], app.Config.Language)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(detail.Details))
	return nil
}

func diseaseFromFlags(name string) *models.Disease {
	return &models.Disease{
		Name:        name,
		Description: diseaseDescription,
		Symptoms:    diseaseSymptoms,
		Treatment:   diseaseTreatment,
		ImageURL:    diseaseImageURL,
	}
}

func runDiseasesAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	created, err := app.Client.CreateDisease(ctx, diseaseFromFlags(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", created.Name, created.ID)
	return nil
}

func runDiseasesUpdate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	updated, err := app.Client.UpdateDisease(ctx, args[0], diseaseFromFlags(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", updated.Name, args[0])
	return nil
}

func runDiseasesRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := app.Client.DeleteDisease(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}
