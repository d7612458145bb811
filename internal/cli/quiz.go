package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/sparkcoach/internal/engine"
)

var (
	quizQuestions  int
	quizDifficulty string
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Run spaced-repetition quizzes",
}

var quizStartCmd = &cobra.Command{
	Use:   "start <resource-path>",
	Short: "Start a quiz on a resource note",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuizStart,
}

var quizAnswerCmd = &cobra.Command{
	Use:   "answer <session-id> <question-index> <answer...>",
	Short: "Answer one quiz question",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runQuizAnswer,
}

var quizStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a quiz session",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuizStatus,
}

func init() {
	quizStartCmd.Flags().IntVarP(&quizQuestions, "questions", "q", 0, "Number of questions (default from config)")
	quizStartCmd.Flags().StringVarP(&quizDifficulty, "difficulty", "d", "medium", "easy, medium or hard")

	quizCmd.AddCommand(quizStartCmd)
	quizCmd.AddCommand(quizAnswerCmd)
	quizCmd.AddCommand(quizStatusCmd)
}

func runQuizStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := apiClient(cfg)
	if err != nil {
		return err
	}

	res, err := c.StartQuiz(cmd.Context(), engine.StartRequest{
		ResourcePath: args[0],
		NumQuestions: quizQuestions,
		Difficulty:   quizDifficulty,
	})
	if err != nil {
		return fmt.Errorf("start quiz: %w", err)
	}
	fmt.Printf("Quiz on %s (%d questions)\n", res.Resource, res.TotalQuestions)
	fmt.Printf("Session: %s\n\n", res.SessionID)
	printQuestion(res.CurrentQuestion)
	return nil
}

func runQuizAnswer(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid question index %q", args[1])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := apiClient(cfg)
	if err != nil {
		return err
	}

	res, err := c.Answer(cmd.Context(), engine.AnswerRequest{
		SessionID:     args[0],
		QuestionIndex: index,
		Answer:        strings.Join(args[2:], " "),
	})
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}

	verdict := "Not quite"
	if res.Correct {
		verdict = "Correct"
	}
	fmt.Printf("%s (%d/100). %s\n", verdict, res.Score, res.Feedback)
	p := res.SessionProgress
	fmt.Printf("Progress: %d answered, %d remaining, %d correct\n\n", p.Answered, p.Remaining, p.CorrectSoFar)

	if res.NextQuestion != nil {
		printQuestion(*res.NextQuestion)
		return nil
	}
	if res.QuizComplete && res.FinalScore != nil {
		fmt.Printf("Quiz complete. Final score: %d\n", *res.FinalScore)
		if res.RetentionUpdated != nil && *res.RetentionUpdated && res.NewRetention != nil {
			fmt.Printf("Retention now %d, next review %s\n", *res.NewRetention, res.NextReview)
		} else {
			fmt.Println("Retention could not be written back to the vault.")
		}
	}
	return nil
}

func runQuizStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := apiClient(cfg)
	if err != nil {
		return err
	}
	s, err := c.Session(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	fmt.Printf("%s  %s  %s\n", s.SessionID, s.Status, s.ResourcePath)
	fmt.Printf("Answered %d/%d, %d correct", s.Answered, s.TotalQuestions, s.CorrectAnswers)
	if s.Score != nil {
		fmt.Printf(", score %d", *s.Score)
	}
	fmt.Println()
	return nil
}

func printQuestion(q engine.Question) {
	fmt.Printf("Q%d [%s, %s]: %s\n", q.Index, q.Type, q.Difficulty, q.Question)
}
