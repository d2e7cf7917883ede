package provider

import (
	"context"
	"errors"
	"testing"
)

func TestStaticCostTable(t *testing.T) {
	table := NewStaticCostTable()

	if got := table.UnitCost("gpt-4o"); got != 0.02 {
		t.Errorf("UnitCost(gpt-4o) = %v, want 0.02", got)
	}
	if got := table.UnitCost("some-unknown-model"); got != 0.01 {
		t.Errorf("UnitCost(unknown) = %v, want the 0.01 default", got)
	}

	table.Set("custom-model", 0.5)
	if got := table.UnitCost("custom-model"); got != 0.5 {
		t.Errorf("UnitCost(custom-model) = %v after Set, want 0.5", got)
	}
}

func TestMockExecutor_Echoes(t *testing.T) {
	mock := NewMockExecutor()

	payloads := [][]byte{[]byte("one"), []byte("two")}
	responses, err := mock.Execute(context.Background(), "model-a", payloads)
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if string(responses[0].Content) != "echo(model-a): one" {
		t.Errorf("response 0 = %q, want echo(model-a): one", responses[0].Content)
	}
	if responses[1].InputUnits != 3 || responses[1].OutputUnits != 3 {
		t.Errorf("response 1 units = (%d, %d), want payload length 3",
			responses[1].InputUnits, responses[1].OutputUnits)
	}

	if mock.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", mock.Calls())
	}
	if sizes := mock.BatchSizes(); len(sizes) != 1 || sizes[0] != 2 {
		t.Errorf("BatchSizes() = %v, want [2]", sizes)
	}
}

func TestMockExecutor_FailWith(t *testing.T) {
	mock := NewMockExecutor()
	boom := errors.New("provider down")
	mock.FailWith(boom)

	if _, err := mock.Execute(context.Background(), "model-a", [][]byte{[]byte("x")}); !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want the configured failure", err)
	}
}

func TestMockExecutor_TruncateResults(t *testing.T) {
	mock := NewMockExecutor()
	mock.TruncateResults(1)

	responses, err := mock.Execute(context.Background(), "model-a", [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if len(responses) != 1 {
		t.Errorf("got %d responses, want 1 after truncation", len(responses))
	}
}
