package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Krimson/xray-triage/internal/backend"
	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/pkg/models"
)

var (
	chatBot     string
	chatDisease string
)

// chatCmd asks the symptom bot a question
var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask the symptom bot",
	Long: `Asks the symptom bot a question. The local bot answers about one disease;
when --disease is omitted, the disease shown in the last result is used.

Examples:
  triagectl chat "is it contagious?"
  triagectl chat --bot gemini "what does a chest X-ray show?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

// chatSuggestCmd prints suggested questions for a disease
var chatSuggestCmd = &cobra.Command{
	Use:   "suggest [disease]",
	Short: "Suggested questions about a disease",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChatSuggest,
}

func init() {
	chatCmd.Flags().StringVar(&chatBot, "bot", string(backend.BotLocal), "Bot: local | gemini")
	chatCmd.Flags().StringVarP(&chatDisease, "disease", "d", "", "Disease the question is about")
	chatCmd.AddCommand(chatSuggestCmd)
}

// currentDisease - болезнь из последнего результата вкладки
func currentDisease(cmd *cobra.Command) string {
	sess := cache.NewSession(app.Cache, app.SessionID, app.Logger)
	if d := sess.DiseaseDetails(cmd.Context()); d != nil {
		return d.Disease
	}
	if p := sess.PredictionData(cmd.Context()); p != nil && len(p.TopDiseases) > 0 {
		return p.TopDiseases[0].Disease
	}
	return ""
}

func runChat(cmd *cobra.Command, args []string) error {
	bot, err := backend.ParseBotType(chatBot)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	chat := backend.NewChat(app.Client)
	chat.SetBot(bot)

	disease := chatDisease
	if disease == "" && bot == backend.BotLocal {
		disease = currentDisease(cmd)
	}

	resp, err := chat.Ask(ctx, models.MedicalQuery{Question: strings.Join(args, " "), Disease: disease})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderMarkdown(resp.Answer))
	if resp.Disclaimer != "" {
		fmt.Fprintf(out, "\n%s\n", resp.Disclaimer)
	}
	if len(resp.FollowupQuestions) > 0 {
		fmt.Fprintln(out, "\nYou may also ask:")
		for _, q := range resp.FollowupQuestions {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	return nil
}

func runChatSuggest(cmd *cobra.Command, args []string) error {
	disease := currentDisease(cmd)
	if len(args) == 1 {
		disease = args[0]
	}
	if disease == "" {
		return backend.ErrDiseaseRequired
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	sq, err := backend.NewChat(app.Client).SuggestedQuestions(ctx, disease)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Questions about %s:\n", sq.Disease)
	for _, q := range sq.Questions {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", q)
	}
	return nil
}
