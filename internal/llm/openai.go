package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"convfinqa-eval/internal/retry"
)

// OpenAIClient calls the OpenAI Chat Completions API, using one model for
// answering and another for judging reasoning.
type OpenAIClient struct {
	model       openai.ChatModel
	judgeModel  openai.ChatModel
	temperature float64
	maxTokens   int64 // 0 lets the provider decide
	client      *openai.Client
	log         *slog.Logger
}

const (
	defaultChatTimeout = 60 * time.Second
	answerTemperature  = 0.0
	maxAttempts        = 3

	// o1-family models reject temperature overrides below 1.0 and need a
	// generous completion budget for their hidden reasoning tokens.
	o1MinCompletionTokens = 5000
)

const answerSystemPrompt = "You are a financial analyst. Use the provided report context to analyse and compute " +
	"the final answer to the question using numerical reasoning. Show your working as numbered steps, " +
	"then end with a line of the exact form \"Answer: <number>\" containing only the final numeric result in decimal."

const judgeSystemPrompt = "You assess how closely a model's numerical reasoning steps match the reference steps " +
	"for a financial question. Reply with a single integer between 1 and 10, where 1 is not similar and 10 is very similar."

// NewOpenAIClient builds a client with defaults against api.openai.com.
func NewOpenAIClient(log *slog.Logger, apiKey string, model, judgeModel openai.ChatModel) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	if judgeModel == "" {
		judgeModel = model
	}

	c := &OpenAIClient{
		model:       model,
		judgeModel:  judgeModel,
		temperature: answerTemperature,
		log:         log,
	}
	if strings.HasPrefix(string(model), "o1-") {
		log.Warn("o1 model detected; forcing temperature 1.0 and a completion token floor", "model", model)
		c.temperature = 1.0
		c.maxTokens = o1MinCompletionTokens
	}

	cli := openai.NewClient(option.WithAPIKey(apiKey))
	c.client = &cli
	return c, nil
}

func (c *OpenAIClient) Answer(ctx context.Context, question, contextText string) (Answer, error) {
	content, err := c.complete(ctx, c.model,
		answerSystemPrompt,
		fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question),
	)
	if err != nil {
		return Answer{}, err
	}
	reasoning, answer := splitAnswer(content)
	return Answer{Reasoning: reasoning, Answer: answer}, nil
}

func (c *OpenAIClient) AssessReasoning(ctx context.Context, actualSteps, modelReasoning, contextText string) (int, error) {
	content, err := c.complete(ctx, c.judgeModel,
		judgeSystemPrompt,
		fmt.Sprintf("Context:\n%s\n\nReference steps:\n%s\n\nModel reasoning:\n%s", contextText, actualSteps, modelReasoning),
	)
	if err != nil {
		return 0, err
	}
	score, ok := parseScore(content)
	if !ok {
		return 0, fmt.Errorf("judge returned no integer score in 1-10: %q", content)
	}
	return score, nil
}

// complete retries transient API failures with exponential backoff.
func (c *OpenAIClient) complete(ctx context.Context, model openai.ChatModel, system, user string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retry.ExponentialBackoff(attempt-1, time.Second)):
			}
		}
		content, err := c.completeOnce(ctx, model, system, user)
		if err == nil {
			return content, nil
		}
		lastErr = err
		c.log.Warn("chat completion failed", "model", model, "attempt", attempt+1, "err", err)
	}
	return "", lastErr
}

func (c *OpenAIClient) completeOnce(ctx context.Context, model openai.ChatModel, system, user string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultChatTimeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    buildMessages(system, user),
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(reqCtx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(user),
				},
			},
		},
	}
}
