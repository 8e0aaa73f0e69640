package planner

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"
)

var errGenerationDown = errors.New("generation unavailable")

// promptKind classifies a rendered prompt by its opening line
func promptKind(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "You are a planning assistant"):
		return "plan"
	case strings.HasPrefix(prompt, "You are an execution assistant"):
		return "execute"
	case strings.HasPrefix(prompt, "You are a synthesis assistant"):
		return "synthesize"
	case strings.HasPrefix(prompt, "You are a quality evaluator"):
		return "score"
	default:
		return "unknown"
	}
}

// scriptedGenerator answers each prompt kind from a queue; the last reply repeats
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string][]scriptedReply
	prompts map[string][]string
}

type scriptedReply struct {
	text string
	err  error
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		replies: map[string][]scriptedReply{},
		prompts: map[string][]string{},
	}
}

func (s *scriptedGenerator) on(kind string, replies ...scriptedReply) *scriptedGenerator {
	s.replies[kind] = replies
	return s
}

func (s *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := promptKind(prompt)
	s.prompts[kind] = append(s.prompts[kind], prompt)

	queue := s.replies[kind]
	if len(queue) == 0 {
		return "", errGenerationDown
	}
	reply := queue[0]
	if len(queue) > 1 {
		s.replies[kind] = queue[1:]
	}
	return reply.text, reply.err
}

func (s *scriptedGenerator) calls(kind string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts[kind]...)
}

func ok(text string) scriptedReply { return scriptedReply{text: text} }

func fail() scriptedReply { return scriptedReply{err: errGenerationDown} }

// failingGenerator rejects every call
var failingGenerator = GeneratorFunc(func(context.Context, string) (string, error) {
	return "", errGenerationDown
})

// MockGenerator is a testify mock for expectation-style tests
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}
