package aggregate

import (
	"context"
	"testing"

	"credcheck/internal/detect"
	"credcheck/internal/types"
)

func vote(layer string, isFake bool) types.LayerVerdict {
	return types.Vote(layer, isFake, nil)
}

func TestAggregateMajorityFake(t *testing.T) {
	result := Aggregate([]types.LayerVerdict{
		vote("a", true),
		vote("b", false),
		vote("c", true),
	})

	if !result.IsFake {
		t.Error("expected fake verdict with 2 of 3 fake votes")
	}
	if result.VotesForFake != 2 || result.VotesForReal != 1 {
		t.Errorf("got votes %d/%d, want 2/1", result.VotesForFake, result.VotesForReal)
	}
	if result.Label != types.LabelFake {
		t.Errorf("got label %q, want %q", result.Label, types.LabelFake)
	}
}

func TestAggregateAbstentionsDoNotCount(t *testing.T) {
	result := Aggregate([]types.LayerVerdict{
		types.Abstain("a", "unavailable"),
		types.Abstain("b", "unavailable"),
		vote("c", false),
	})

	if result.IsFake {
		t.Error("single real vote with two abstentions should be real")
	}
	if result.VotesForFake != 0 || result.VotesForReal != 1 {
		t.Errorf("got votes %d/%d, want 0/1", result.VotesForFake, result.VotesForReal)
	}
}

func TestAggregateAllAbstainIsReal(t *testing.T) {
	result := Aggregate([]types.LayerVerdict{
		types.Abstain("a", ""),
		types.Abstain("b", ""),
		types.Abstain("c", ""),
	})

	if result.IsFake {
		t.Error("all-abstain must resolve to not fake")
	}
	if result.Label != types.LabelReal {
		t.Errorf("got label %q, want %q", result.Label, types.LabelReal)
	}
}

func TestAggregateEmptyIsReal(t *testing.T) {
	if Aggregate(nil).IsFake {
		t.Error("no verdicts must resolve to not fake")
	}
}

func TestAggregateTieIsReal(t *testing.T) {
	ties := [][]types.LayerVerdict{
		{vote("a", true), vote("b", false)},
		{vote("a", true), vote("b", false), vote("c", true), vote("d", false)},
	}

	for i, verdicts := range ties {
		if result := Aggregate(verdicts); result.IsFake {
			t.Errorf("tie case %d: expected not fake, got fake (%d/%d)",
				i, result.VotesForFake, result.VotesForReal)
		}
	}
}

func TestAggregateDeterministic(t *testing.T) {
	verdicts := []types.LayerVerdict{
		vote("a", true),
		types.Abstain("b", "down"),
		vote("c", true),
	}

	first := Aggregate(verdicts)
	for i := 0; i < 10; i++ {
		if got := Aggregate(verdicts); got != first {
			t.Fatalf("aggregation not deterministic: %+v vs %+v", got, first)
		}
	}
}

type stubDetector struct {
	name    string
	verdict types.LayerVerdict
	err     error
	panics  bool
}

func (s *stubDetector) Name() string { return s.name }

func (s *stubDetector) Evaluate(ctx context.Context, text string) (types.LayerVerdict, error) {
	if s.panics {
		panic("detector exploded")
	}
	return s.verdict, s.err
}

func TestEngineIsolatesFailingLayers(t *testing.T) {
	engine := NewEngine([]detect.Detector{
		&stubDetector{name: "good", verdict: vote("good", true)},
		&stubDetector{name: "erroring", err: types.NewDetectorError("erroring", "down", nil)},
		&stubDetector{name: "panicking", panics: true},
	}, nil)

	result, verdicts := engine.Evaluate(context.Background(), "headline")

	if len(verdicts) != 3 {
		t.Fatalf("got %d verdicts, want 3", len(verdicts))
	}
	if !result.IsFake {
		t.Error("single fake vote against two abstentions should be fake")
	}
	for _, v := range verdicts[1:] {
		if v.IsFake != nil {
			t.Errorf("layer %s should have abstained", v.Layer)
		}
	}
}
