package reduce

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestReduceLength(t *testing.T) {
	vector := make([]float32, 3072)
	for i := range vector {
		vector[i] = float32(i)
	}

	reduced, err := Reduce(vector, 768)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if len(reduced) != 768 {
		t.Fatalf("len(reduced) = %d, want 768", len(reduced))
	}
}

func TestReduceConstantVector(t *testing.T) {
	vector := make([]float32, 100)
	for i := range vector {
		vector[i] = 0.5
	}

	reduced, err := Reduce(vector, 7)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	for i, v := range reduced {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Errorf("reduced[%d] = %f, want 0.5", i, v)
		}
	}
}

func TestReduceBucketAverages(t *testing.T) {
	// Six values into three buckets of two: averages are exact.
	vector := []float32{1, 3, 5, 7, 9, 11}

	reduced, err := Reduce(vector, 3)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	want := []float32{2, 6, 10}
	for i := range want {
		if math.Abs(float64(reduced[i]-want[i])) > 1e-6 {
			t.Errorf("reduced[%d] = %f, want %f", i, reduced[i], want[i])
		}
	}
}

func TestReduceUnevenBuckets(t *testing.T) {
	// Five values into two buckets: floor boundaries give [0,2) and [2,5).
	vector := []float32{2, 4, 6, 8, 10}

	reduced, err := Reduce(vector, 2)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	if math.Abs(float64(reduced[0])-3) > 1e-6 {
		t.Errorf("reduced[0] = %f, want 3", reduced[0])
	}
	if math.Abs(float64(reduced[1])-8) > 1e-6 {
		t.Errorf("reduced[1] = %f, want 8", reduced[1])
	}
}

func TestReduceSameLength(t *testing.T) {
	vector := []float32{1, 2, 3}

	reduced, err := Reduce(vector, 3)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	for i := range vector {
		if reduced[i] != vector[i] {
			t.Errorf("reduced[%d] = %f, want %f", i, reduced[i], vector[i])
		}
	}

	// The result must be a copy, not an alias.
	reduced[0] = 99
	if vector[0] == 99 {
		t.Error("Reduce returned an alias of the input")
	}
}

func TestReduceInvalidTarget(t *testing.T) {
	vector := []float32{1, 2, 3}

	if _, err := Reduce(vector, 0); err == nil {
		t.Error("expected error for target length 0")
	}
	if _, err := Reduce(vector, -1); err == nil {
		t.Error("expected error for negative target length")
	}
	if _, err := Reduce(vector, 4); err == nil {
		t.Error("expected error for target longer than source")
	}
}

func TestReduceScalingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sourceLen := rapid.IntRange(1, 256).Draw(rt, "source_len")
		targetLen := rapid.IntRange(1, sourceLen).Draw(rt, "target_len")
		scale := float32(rapid.Float64Range(0.1, 4).Draw(rt, "scale"))

		vector := make([]float32, sourceLen)
		scaled := make([]float32, sourceLen)
		for i := range vector {
			vector[i] = float32(rapid.Float64Range(-10, 10).Draw(rt, "value"))
			scaled[i] = vector[i] * scale
		}

		reduced, err := Reduce(vector, targetLen)
		if err != nil {
			rt.Fatalf("Reduce failed: %v", err)
		}
		reducedScaled, err := Reduce(scaled, targetLen)
		if err != nil {
			rt.Fatalf("Reduce failed on scaled input: %v", err)
		}

		// Averaging commutes with scaling every input by a constant.
		const eps = 1e-3
		for i := range reduced {
			if math.Abs(float64(reduced[i]*scale-reducedScaled[i])) > eps {
				rt.Fatalf("reduced[%d]*%f = %f, want %f", i, scale, reduced[i]*scale, reducedScaled[i])
			}
		}
	})
}

func TestReduceBoundsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sourceLen := rapid.IntRange(1, 512).Draw(rt, "source_len")
		targetLen := rapid.IntRange(1, sourceLen).Draw(rt, "target_len")

		vector := make([]float32, sourceLen)
		minV, maxV := float32(math.Inf(1)), float32(math.Inf(-1))
		for i := range vector {
			vector[i] = float32(rapid.Float64Range(-10, 10).Draw(rt, "value"))
			if vector[i] < minV {
				minV = vector[i]
			}
			if vector[i] > maxV {
				maxV = vector[i]
			}
		}

		reduced, err := Reduce(vector, targetLen)
		if err != nil {
			rt.Fatalf("Reduce failed: %v", err)
		}
		if len(reduced) != targetLen {
			rt.Fatalf("len(reduced) = %d, want %d", len(reduced), targetLen)
		}

		// Each output is an average of inputs, so it stays inside the
		// input range.
		const eps = 1e-4
		for i, v := range reduced {
			if v < minV-eps || v > maxV+eps {
				rt.Fatalf("reduced[%d] = %f outside input range [%f, %f]", i, v, minV, maxV)
			}
		}
	})
}
