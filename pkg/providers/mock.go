package providers

import (
	"context"
	"sync"
)

// Mock is a scripted provider for tests: queue replies per capability, force
// errors, and inspect captured calls. Safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	DescribeReplies []string
	DescribeErr     error
	describeCalls   int

	TranscribeReply string
	TranscribeErr   error
	transcribeCalls int

	GenerateReplies []string
	GenerateErr     error
	generateCalls   int

	Prompts []string
}

// NewMock creates an empty mock provider.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) DescribeImage(_ context.Context, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DescribeErr != nil {
		return "", m.DescribeErr
	}

	reply := "a screen"
	if m.describeCalls < len(m.DescribeReplies) {
		reply = m.DescribeReplies[m.describeCalls]
	}

	m.describeCalls++

	return reply, nil
}

func (m *Mock) Transcribe(_ context.Context, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transcribeCalls++

	if m.TranscribeErr != nil {
		return "", m.TranscribeErr
	}

	return m.TranscribeReply, nil
}

func (m *Mock) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)

	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}

	reply := ""
	if m.generateCalls < len(m.GenerateReplies) {
		reply = m.GenerateReplies[m.generateCalls]
	}

	m.generateCalls++

	if reply == "" {
		return "", ErrEmptyResponse
	}

	return reply, nil
}

// DescribeCalls reports how many frame descriptions were requested.
func (m *Mock) DescribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.describeCalls
}

// TranscribeCalls reports how many transcriptions were requested.
func (m *Mock) TranscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.transcribeCalls
}

// GenerateCalls reports how many generation calls were made.
func (m *Mock) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.generateCalls
}
