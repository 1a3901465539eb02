package llm

import "context"

// StubClient returns canned responses so the pipeline can be exercised
// end-to-end without an API key (LLM_PROVIDER=stub).
type StubClient struct{}

func NewStub() *StubClient { return &StubClient{} }

func (s *StubClient) Answer(_ context.Context, _, _ string) (Answer, error) {
	return Answer{Reasoning: "stubbed reasoning", Answer: "0"}, nil
}

func (s *StubClient) AssessReasoning(_ context.Context, _, _, _ string) (int, error) {
	return 5, nil
}
