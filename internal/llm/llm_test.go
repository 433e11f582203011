package llm

import (
	"context"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"identical vectors", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"orthogonal vectors", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"opposite vectors", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"mismatched lengths", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
		{"zero vector", []float64{0, 0}, []float64{1, 2}, 0.0},
		{"empty vectors", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMockClientScriptedReplies(t *testing.T) {
	mock := NewMockClient()
	mock.Replies["classify"] = "准确搜索"
	mock.Fallback = "其它"

	resp, err := mock.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "please classify this message"},
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "准确搜索" {
		t.Errorf("got %q, want scripted reply", resp.Content)
	}

	resp, _ = mock.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "unrelated"},
	}, Options{})
	if resp.Content != "其它" {
		t.Errorf("got %q, want fallback", resp.Content)
	}
}

func TestMockEmbedDeterministic(t *testing.T) {
	mock := NewMockClient()

	a, err := mock.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := mock.Embed(context.Background(), []string{"hello world"})

	if CosineSimilarity(a[0], b[0]) < 0.999 {
		t.Error("same text should embed identically")
	}
	if len(a[0]) != mock.Dimension() {
		t.Errorf("vector length %d, want %d", len(a[0]), mock.Dimension())
	}
}
