package openai

import "testing"

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Fatal("expected error for empty api key")
	}
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("model = %q, want default %q", p.ModelID(), DefaultModel)
	}
}

func TestDimensionsMatchModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-large", 3072},
		{"text-embedding-3-small", 1536},
		{"text-embedding-ada-002", 1536},
		{"unknown-model", 1536},
	}
	for _, tt := range tests {
		p, err := New("sk-test", tt.model)
		if err != nil {
			t.Fatalf("New(%q): %v", tt.model, err)
		}
		if got := p.Dimensions(); got != tt.want {
			t.Errorf("Dimensions for %q = %d, want %d", tt.model, got, tt.want)
		}
	}
}

func TestVectorConversionKeepsValues(t *testing.T) {
	in := []float64{0.5, -0.25, 1}
	out := toFloat32(in)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i := range in {
		if float64(out[i]) != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}
