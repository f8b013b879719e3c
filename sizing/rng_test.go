package sizing

import (
	"math"
	"testing"
)

func TestRunKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewRunKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewRunKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// BDD: Same key+name produces same sequence
	rng1 := NewPartitionedRNG(NewRunKey(42))
	rng2 := NewPartitionedRNG(NewRunKey(42))

	for i := 0; i < 3; i++ {
		a := rng1.ForSubsystem(SubsystemPerturb).Float64()
		b := rng2.ForSubsystem(SubsystemPerturb).Float64()
		if a != b {
			t.Errorf("Value %d: got %v and %v, want identical", i, a, b)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// BDD: Drawing derates never shifts the acceptance sequence
	rngA := NewPartitionedRNG(NewRunKey(42))
	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(SubsystemDerate).NormFloat64()
	}
	got := rngA.ForSubsystem(SubsystemAccept).Float64()

	fresh := NewPartitionedRNG(NewRunKey(42))
	want := fresh.ForSubsystem(SubsystemAccept).Float64()

	if got != want {
		t.Errorf("accept first value = %v, want %v (isolation broken)", got, want)
	}
}

func TestPartitionedRNG_SubsystemsDiffer(t *testing.T) {
	rng := NewPartitionedRNG(NewRunKey(42))
	perturb := rng.ForSubsystem(SubsystemPerturb).Int63()
	accept := rng.ForSubsystem(SubsystemAccept).Int63()
	if perturb == accept {
		t.Error("perturb and accept subsystems produced the same first value")
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	// BDD: Same name returns same *rand.Rand instance
	rng := NewPartitionedRNG(NewRunKey(42))

	if rng.ForSubsystem(SubsystemDerate) != rng.ForSubsystem(SubsystemDerate) {
		t.Error("ForSubsystem returned different instances for same name")
	}
}

func TestPartitionedRNG_Key(t *testing.T) {
	rng := NewPartitionedRNG(NewRunKey(12345))

	if rng.Key() != RunKey(12345) {
		t.Errorf("Key() = %v, want %v", rng.Key(), 12345)
	}
}

func TestPartitionedRNG_LazyInitialization(t *testing.T) {
	// BDD: Subsystems map is empty until ForSubsystem is called
	rng := NewPartitionedRNG(NewRunKey(42))

	if len(rng.subsystems) != 0 {
		t.Errorf("New PartitionedRNG has %d subsystems, want 0", len(rng.subsystems))
	}
	rng.ForSubsystem(SubsystemPerturb)
	if len(rng.subsystems) != 1 {
		t.Errorf("After one ForSubsystem call, have %d subsystems, want 1", len(rng.subsystems))
	}
}
