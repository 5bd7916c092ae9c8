package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockClient is a local stand-in that never calls a model.
// Fields overrides the generated text per field; Omit drops fields from the
// result; Fail makes every call fail with that reason.
type MockClient struct {
	Fields map[string]string
	Omit   []string
	Fail   Reason

	mu    sync.Mutex
	Calls []GenerationRequest
}

func (m *MockClient) Generate(_ context.Context, req GenerationRequest) GenerationResult {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.Fail != "" {
		return failure(m.Fail, "mock failure")
	}

	omit := make(map[string]bool, len(m.Omit))
	for _, name := range m.Omit {
		omit[name] = true
	}

	fields := make(map[string]string, len(req.Schema))
	for _, f := range req.Schema {
		if omit[f.Name] {
			continue
		}
		if v, ok := m.Fields[f.Name]; ok {
			fields[f.Name] = v
			continue
		}
		fields[f.Name] = fmt.Sprintf("Generated %s for %s", f.Name, req.ImageURL)
	}
	raw, _ := json.Marshal(fields)
	return GenerationResult{Fields: fields, Raw: string(raw)}
}
