package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Krimson/xray-triage/pkg/models"
)

var (
	reviewRating int
	reviewUser   string

	subscribeEmail string
	letterSubject  string
)

// reviewsCmd manages user reviews
var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List, post and remove reviews",
	RunE:  runReviewsList,
}

var reviewsPostCmd = &cobra.Command{
	Use:   "post <text>",
	Short: "Post a review as the signed-in user",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReviewsPost,
}

var reviewsRemoveCmd = &cobra.Command{
	Use:   "remove [review-id]",
	Short: "Remove one review, or all reviews of --user",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReviewsRemove,
}

// newsletterCmd manages the newsletter
var newsletterCmd = &cobra.Command{
	Use:   "newsletter",
	Short: "Newsletter subscription and delivery",
}

var newsletterSubscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe the signed-in user",
	RunE:  runNewsletterSubscribe,
}

var newsletterSubscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "List subscribers",
	RunE:  runNewsletterSubscribers,
}

var newsletterSendCmd = &cobra.Command{
	Use:   "send <body>",
	Short: "Send a letter to all subscribers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNewsletterSend,
}

func init() {
	reviewsCmd.Flags().StringVar(&reviewUser, "user", "", "Only reviews of this user")
	reviewsPostCmd.Flags().IntVar(&reviewRating, "rating", 5, "Rating 1-5")
	reviewsRemoveCmd.Flags().StringVar(&reviewUser, "user", "", "Remove every review of this user")
	reviewsCmd.AddCommand(reviewsPostCmd)
	reviewsCmd.AddCommand(reviewsRemoveCmd)

	newsletterSubscribeCmd.Flags().StringVar(&subscribeEmail, "email", "", "Email (required)")
	newsletterSubscribeCmd.MarkFlagRequired("email")
	newsletterSendCmd.Flags().StringVar(&letterSubject, "subject", "", "Subject (required)")
	newsletterSendCmd.MarkFlagRequired("subject")
	newsletterCmd.AddCommand(newsletterSubscribeCmd)
	newsletterCmd.AddCommand(newsletterSubscribersCmd)
	newsletterCmd.AddCommand(newsletterSendCmd)
}

func runReviewsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var (
		reviews []models.Review
		err     error
	)
	if reviewUser != "" {
		reviews, err = app.Client.ReviewsByUser(ctx, reviewUser)
	} else {
		reviews, err = app.Client.ListReviews(ctx)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tRATING\tREVIEW")
	for _, r := range reviews {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Username, strings.Repeat("*", r.Rating), truncate(r.Content, 60))
	}
	return w.Flush()
}

func runReviewsPost(cmd *cobra.Command, args []string) error {
	if reviewRating < 1 || reviewRating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", reviewRating)
	}
	id, err := credential(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	created, err := app.Client.CreateReview(ctx, &models.Review{
		Username: id.Username,
		Content:  strings.Join(args, " "),
		Rating:   reviewRating,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Review posted (%s)\n", created.ID)
	return nil
}

func runReviewsRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	switch {
	case len(args) == 1:
		if err := app.Client.DeleteReview(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed review %s\n", args[0])
	case reviewUser != "":
		if err := app.Client.DeleteReviewsByUser(ctx, reviewUser); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed all reviews of %s\n", reviewUser)
	default:
		return fmt.Errorf("pass a review id or --user")
	}
	return nil
}

func runNewsletterSubscribe(cmd *cobra.Command, args []string) error {
	id, err := credential(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := app.Client.Subscribe(ctx, &models.Subscriber{Username: id.Username, Email: subscribeEmail}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Subscribed %s\n", subscribeEmail)
	return nil
}

func runNewsletterSubscribers(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	subs, err := app.Client.ListSubscribers(ctx)
	if err != nil {
		return err
	}
	for _, s := range subs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", s.Username, s.Email)
	}
	return nil
}

func runNewsletterSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	err := app.Client.SendNewsletter(ctx, &models.Newsletter{Subject: letterSubject, Body: strings.Join(args, " ")})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Newsletter sent")
	return nil
}
