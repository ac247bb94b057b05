package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrBadResponse marks a model reply that did not match the expected JSON
// shape. Callers can fall back to a neutral verdict instead of failing the
// whole analysis.
var ErrBadResponse = errors.New("malformed model response")

// LLM is the language-model capability the processor needs. Satisfied by
// Client; tests substitute fakes.
type LLM interface {
	CleanArticleText(ctx context.Context, text string) (string, error)
	ExtractArticleInfo(ctx context.Context, text string) (*ArticleAnalysis, error)
	AnalyzeMisleading(ctx context.Context, article *ArticleAnalysis, references []*ArticleAnalysis, mainTitle string, refTitles []string) (*MisleadingAnalysis, error)
}

// Client talks to the OpenAI chat completion API.
type Client struct {
	api          *openai.Client
	model        string
	skipCleaning bool
	logger       *slog.Logger
}

// defaultModel balances cost against quality for bulk article analysis.
const defaultModel = "gpt-4o-mini"

// NewClient creates a client. An empty model selects the default. When
// skipCleaning is set, CleanArticleText passes text through untouched.
func NewClient(token, model string, skipCleaning bool, logger *slog.Logger) *Client {
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:          openai.NewClient(token),
		model:        model,
		skipCleaning: skipCleaning,
		logger:       logger,
	}
}

// completeJSON sends a single-message prompt and forces a JSON object reply.
func (c *Client) completeJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CleanArticleText strips leftover boilerplate (navigation, cookie notices,
// subscription prompts) from extracted article text. Cleaning is best
// effort: on any failure the original text is returned.
func (c *Client) CleanArticleText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if c.skipCleaning {
		c.logger.Info("skipping llm text cleaning")
		return text, nil
	}

	prompt := "The json API endpoint returns a {text} object. The text field contains the input " +
		"article with all non-article noise removed: navigation labels, cookie and privacy notices, " +
		"subscription and newsletter prompts, social sharing prompts, image captions, advertising text " +
		"and repeated boilerplate. The article's own sentences are kept verbatim and in order; nothing " +
		"is summarised or rephrased. Given the following article\n\n<INPUT>\n" + text +
		"\n</INPUT>\n\nThe output is as follows:"

	raw, err := c.completeJSON(ctx, prompt)
	if err != nil {
		c.logger.Warn("llm cleaning failed, using original text", "error", err)
		return text, nil
	}

	var box struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &box); err != nil || box.Text == "" {
		c.logger.Warn("llm cleaning reply unusable, using original text")
		return text, nil
	}

	c.logger.Info("llm cleaning done", "before", len(text), "after", len(box.Text))
	return box.Text, nil
}

// ExtractArticleInfo pulls the factual claims and a short summary out of
// article text.
func (c *Client) ExtractArticleInfo(ctx context.Context, text string) (*ArticleAnalysis, error) {
	prompt := "The json API endpoint returns a {claims, summary} object. The claims field is an " +
		"array of strings, each one distinct factual claim the article makes, stated neutrally in one " +
		"sentence. Opinions, predictions and quotes of opinion are not claims. The summary field is a " +
		"string summarising the article in one short paragraph, stating the contents directly without " +
		"introductions like \"The article says\". Given the following article\n\n<INPUT>\n" + text +
		"\n</INPUT>\n\nThe output is as follows (as a reminder, the json API endpoint returns a " +
		"{claims, summary} object):"

	raw, err := c.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseArticleInfo(raw)
}

// AnalyzeMisleading compares the main article's claims against the
// reference articles and decides whether the main article is misleading.
func (c *Client) AnalyzeMisleading(ctx context.Context, article *ArticleAnalysis, references []*ArticleAnalysis, mainTitle string, refTitles []string) (*MisleadingAnalysis, error) {
	var b strings.Builder
	b.WriteString("The json API endpoint returns a {isMisleading, reasons, explanation, confidence} " +
		"object. isMisleading is a true/false boolean: true when the main article's claims are " +
		"contradicted by, unsupported by, or materially exaggerated relative to the reference " +
		"coverage. reasons is an array of short strings, each one specific discrepancy or supporting " +
		"observation. explanation is a paragraph, written for a general reader, explaining the " +
		"verdict. confidence is a number between 0 and 1. Headlines that frame the same facts " +
		"differently are not by themselves misleading.\n\n")

	b.WriteString("Main article title: " + mainTitle + "\n")
	b.WriteString("Main article summary: " + article.Summary + "\n")
	b.WriteString("Main article claims:\n")
	for _, claim := range article.Claims {
		b.WriteString("- " + claim + "\n")
	}

	for i, ref := range references {
		title := ""
		if i < len(refTitles) {
			title = refTitles[i]
		}
		fmt.Fprintf(&b, "\nReference %d title: %s\n", i+1, title)
		fmt.Fprintf(&b, "Reference %d summary: %s\n", i+1, ref.Summary)
		fmt.Fprintf(&b, "Reference %d claims:\n", i+1)
		for _, claim := range ref.Claims {
			b.WriteString("- " + claim + "\n")
		}
	}

	b.WriteString("\nThe output is as follows (as a reminder, the json API endpoint returns a " +
		"{isMisleading, reasons, explanation, confidence} object):")

	raw, err := c.completeJSON(ctx, b.String())
	if err != nil {
		return nil, err
	}
	return parseMisleading(raw)
}

func parseArticleInfo(raw string) (*ArticleAnalysis, error) {
	var analysis ArticleAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if analysis.Summary == "" && len(analysis.Claims) == 0 {
		return nil, fmt.Errorf("%w: empty claims and summary", ErrBadResponse)
	}
	if analysis.Claims == nil {
		analysis.Claims = []string{}
	}
	return &analysis, nil
}

func parseMisleading(raw string) (*MisleadingAnalysis, error) {
	var verdict MisleadingAnalysis
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if verdict.IsMisleading == nil || verdict.Explanation == "" {
		return nil, fmt.Errorf("%w: missing verdict fields", ErrBadResponse)
	}
	if verdict.Reasons == nil {
		verdict.Reasons = []string{}
	}
	return &verdict, nil
}
