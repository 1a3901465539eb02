package llm

import "context"

// Answer is a model response to one dataset question: the chain-of-thought
// reasoning plus the final numeric answer extracted from it.
type Answer struct {
	Reasoning string `json:"reasoning"`
	Answer    string `json:"answer"`
}

// Client abstracts the model provider behind the two calls the evaluation
// needs: answering a question and judging reasoning quality.
type Client interface {
	Answer(ctx context.Context, question, context string) (Answer, error)
	AssessReasoning(ctx context.Context, actualSteps, modelReasoning, context string) (int, error)
}
