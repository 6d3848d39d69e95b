package ai

import (
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("healthcare", "Aspirin reduces fever.", "What reduces fever?")

	for _, want := range []string{
		"specialist in healthcare",
		"Use ONLY the context below",
		"I don't have enough information to answer that.",
		"Context: Aspirin reduces fever.",
		"Question: What reduces fever?",
		"Answer:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	a := BuildPrompt("legal", "ctx", "q")
	b := BuildPrompt("legal", "ctx", "q")
	if a != b {
		t.Fatal("BuildPrompt is not deterministic for identical inputs")
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []genai.Part{genai.Text("part one "), genai.Text("part two")},
				},
			},
		},
	}
	if got := responseText(resp); got != "part one part two" {
		t.Errorf("responseText = %q", got)
	}

	if got := responseText(nil); got != "" {
		t.Errorf("responseText(nil) = %q, want empty", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("responseText(empty) = %q, want empty", got)
	}
}

func TestGetRateLimits(t *testing.T) {
	if getRateLimits("free").RPM != 10 {
		t.Error("free tier RPM mismatch")
	}
	if getRateLimits("tier1").RPM != 1000 {
		t.Error("tier1 RPM mismatch")
	}
	if getRateLimits("unknown").RPM != 10 {
		t.Error("unknown tier should fall back to free limits")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(""); got != 1 {
		t.Errorf("estimateTokens(\"\") = %d, want 1", got)
	}
	if got := estimateTokens(strings.Repeat("a", 400)); got != 100 {
		t.Errorf("estimateTokens(400 chars) = %d, want 100", got)
	}
}
