package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/pkg/classifier"
	cfgPkg "github.com/krish9495/documind-ai-hackrx/pkg/config"
	"github.com/krish9495/documind-ai-hackrx/pkg/pipeline"
	"github.com/krish9495/documind-ai-hackrx/pkg/prompt"
)

var (
	configPath string
	verbose    bool

	documents    []string
	questions    []string
	chunkSize    int
	chunkOverlap int
	topK         int
	format       string
	noCache      bool
	timeout      time.Duration
	jsonOutput   bool
)

var rootCmd = &cobra.Command{
	Use:           "documind",
	Short:         "Answer questions over insurance, legal, HR and compliance documents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer questions over a set of documents",
	Long: `Ingests the given documents, builds or reuses the index and answers
every question. Answers are printed in the order the questions were given.`,
	Example: `  documind ask -d policy.pdf -q "What is the grace period for premium payment?"`,
	Args:    cobra.NoArgs,
	RunE:    runAsk,
}

var indexCmd = &cobra.Command{
	Use:   "index [documents...]",
	Short: "Build the index for a set of documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndex,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [questions...]",
	Short: "Show how questions are classified",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress details")

	for _, cmd := range []*cobra.Command{askCmd, indexCmd} {
		cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (500-2000)")
		cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "chunk overlap in characters (50-500)")
		cmd.Flags().StringVar(&format, "format", "auto", "document format: auto, pdf, docx, email or url")
		cmd.Flags().BoolVar(&noCache, "no-cache", false, "rebuild the index even if one exists")
		cmd.Flags().DurationVar(&timeout, "timeout", 0, "request timeout")
	}

	askCmd.Flags().StringSliceVarP(&documents, "doc", "d", nil, "document path or URL (repeatable)")
	askCmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "question to answer (repeatable)")
	askCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "chunks retrieved per question (1-15)")
	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full response as JSON")
	_ = askCmd.MarkFlagRequired("doc")
	_ = askCmd.MarkFlagRequired("question")

	rootCmd.AddCommand(askCmd, indexCmd, classifyCmd)
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("answers"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// spin animates a spinner until the returned stop function is called.
func spin(description string) func() {
	spinner := getSpinner(description)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				spinner.Add(1)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		spinner.Finish()
		fmt.Fprint(os.Stderr, "\r")
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func options() pipeline.Options {
	opts := pipeline.Options{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		TopK:         topK,
		Format:       format,
		Timeout:      timeout,
	}
	if noCache {
		caching := false
		opts.EnableCaching = &caching
	}
	return opts
}

func loadPipeline(ctx context.Context, onAnswer func(models.Answer)) (*pipeline.Pipeline, func(), error) {
	settings, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	p, closeStore, err := pipeline.FromConfig(ctx, settings, newLogger(), onAnswer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	return p, closeStore, nil
}

func runAsk(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = getProgressBar(len(questions), "Answering questions")
	}

	p, closeStore, err := loadPipeline(ctx, func(models.Answer) {
		if bar != nil {
			bar.Add(1)
		}
	})
	if err != nil {
		return err
	}
	defer closeStore()

	resp, err := p.Submit(ctx, pipeline.Request{
		Documents: documents,
		Questions: questions,
		Options:   options(),
	})
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	printResponse(resp)
	return nil
}

func printResponse(resp *models.Response) {
	questionPrompt := color.New(color.FgGreen).PrintfFunc()
	answerPrompt := color.New(color.FgCyan).PrintfFunc()

	for i, a := range resp.Answers {
		questionPrompt("\n[%d] %s\n", i+1, a.Question)
		if a.Degraded() {
			color.Red("%s\n", a.Text)
			continue
		}
		answerPrompt("%s\n", a.Text)
		color.White("  %s, confidence %.1f, %d chunks", a.Classification, a.Confidence, a.ChunksUsed)
		for _, c := range a.Citations {
			color.White("  - %s", c)
		}
	}

	stats := resp.DocumentStatistics
	fmt.Println()
	color.Green("✓ %d/%d documents, %d chunks, %d questions in %s",
		stats.DocumentsProcessed, stats.DocumentCount, stats.ChunkCount, stats.TotalQuestions,
		resp.TotalProcessingTime.Round(time.Millisecond))
	for _, f := range stats.FailedDocuments {
		color.Yellow("  skipped %s", f)
	}
	color.Blue("Index %s:%s (reused: %t), tokens in/out %d/%d",
		resp.Index.Backend, resp.Index.Location, resp.Index.Reused,
		resp.TokenUsage.InputTokens, resp.TokenUsage.OutputTokens)
}

func runIndex(_ *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, closeStore, err := loadPipeline(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	stopSpinner := spin(" Building index...")
	report, err := p.BuildIndex(ctx, args, options())
	stopSpinner()
	if err != nil {
		return err
	}

	for _, f := range report.Documents.FailedDocuments {
		color.Yellow("  skipped %s", f)
	}
	verb := "Built"
	if report.Index.Reused {
		verb = "Reused"
	}
	color.Green("✓ %s index %s:%s with %d chunks from %d/%d documents in %s",
		verb, report.Index.Backend, report.Index.Location, report.Chunks,
		report.Documents.DocumentsProcessed, report.Documents.DocumentCount,
		report.BuildTime.Round(time.Millisecond))
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	for _, q := range args {
		class := classifier.Classify(q)
		scores := classifier.Scores(q)

		parts := make([]string, 0, len(models.Classifications))
		for _, c := range models.Classifications {
			parts = append(parts, fmt.Sprintf("%s=%d", c, scores[c]))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("%s", class)+"  "+q)
		fmt.Fprintln(out, "  "+prompt.Directive(class))
		fmt.Fprintln(out, "  scores: "+strings.Join(parts, " "))
	}
	return nil
}
