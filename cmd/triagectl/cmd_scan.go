package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Krimson/xray-triage/internal/results"
	"github.com/Krimson/xray-triage/pkg/models"
)

var (
	scanFile string
	scanURL  string
	scanView bool
)

// uploadCmd uploads an image and prints its CDN URL
var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an X-ray image and print its URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

// scanCmd classifies an X-ray and stores the result for the session
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify an X-ray and save the result",
	Long: `Classifies the image, caches the prediction and the reference text of the
most probable disease for the session, and saves the result to the signed-in
user's history. When saving fails the result stays in the session cache and
can still be opened with "triagectl results".

Examples:
  triagectl scan --file chest.png
  triagectl scan --url https://res.cloudinary.com/.../chest.png --view`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanFile, "file", "f", "", "Local image to upload before classification")
	scanCmd.Flags().StringVar(&scanURL, "url", "", "Image URL already uploaded")
	scanCmd.Flags().BoolVar(&scanView, "view", false, "Open the interactive results view afterwards")
	scanCmd.MarkFlagsMutuallyExclusive("file", "url")
	scanCmd.MarkFlagsOneRequired("file", "url")
}

func upload(cmd *cobra.Command, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	up, err := app.Client.UploadImage(ctx, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	if up.SecureURL != "" {
		return up.SecureURL, nil
	}
	if up.URL != "" {
		return up.URL, nil
	}
	return app.Client.ImageURL(up.PublicID), nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	imageURL, err := upload(cmd, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), imageURL)
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	imageURL := scanURL
	if scanFile != "" {
		var err error
		if imageURL, err = upload(cmd, scanFile); err != nil {
			return err
		}
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	outcome, err := app.Capturer.Scan(ctx, app.SessionID, imageURL)
	if err != nil {
		var empty *results.EmptyPredictionError
		if errors.As(err, &empty) {
			return fmt.Errorf("the classifier found nothing on %s", empty.ImageURL)
		}
		return err
	}

	printOutcome(cmd, outcome)

	if scanView {
		return runResultsView(cmd)
	}
	return nil
}

func printOutcome(cmd *cobra.Command, outcome *results.Outcome) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Image: %s\n\n", outcome.Prediction.ImageURL)
	for i, d := range outcome.Prediction.TopDiseases {
		fmt.Fprintf(out, "  %d. %-28s %6.2f%%\n", i+1, d.Disease, d.Probability*100)
	}
	fmt.Fprintln(out)

	switch outcome.Status {
	case models.CaptureStatusPersisted:
		fmt.Fprintln(out, "Result saved to your history.")
	default:
		fmt.Fprintf(out, "Result kept for this session only: %v\n", outcome.Err)
	}
	fmt.Fprintln(out, `Run "triagectl results" to browse disease details.`)
}
