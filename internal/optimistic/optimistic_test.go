package optimistic

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateCommitsServerValue(t *testing.T) {
	c := NewCell(10)
	var sawOptimistic int
	got, err := Update(context.Background(), c, "budget",
		func(v int) (int, error) { return v + 5, nil },
		func(_ context.Context, v int) (int, error) {
			sawOptimistic = c.Get()
			return v * 2, nil
		})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if sawOptimistic != 15 {
		t.Errorf("value during remote = %d, want 15", sawOptimistic)
	}
	if got != 30 || c.Get() != 30 {
		t.Errorf("final = %d, cell = %d, want 30", got, c.Get())
	}
}

func TestUpdateRollsBackOnRemoteFailure(t *testing.T) {
	c := NewCell("old")
	remoteErr := errors.New("503")
	got, err := Update(context.Background(), c, "name",
		func(string) (string, error) { return "new", nil },
		func(context.Context, string) (string, error) { return "", remoteErr })
	if !errors.Is(err, remoteErr) {
		t.Fatalf("err = %v, want %v", err, remoteErr)
	}
	if got != "old" || c.Get() != "old" {
		t.Errorf("after rollback got=%q cell=%q, want old", got, c.Get())
	}
}

func TestUpdateRejectedApplySkipsRemote(t *testing.T) {
	c := NewCell(1)
	called := false
	applyErr := errors.New("duplicate")
	_, err := Update(context.Background(), c, "mkdir",
		func(int) (int, error) { return 0, applyErr },
		func(context.Context, int) (int, error) {
			called = true
			return 0, nil
		})
	if !errors.Is(err, applyErr) {
		t.Fatalf("err = %v", err)
	}
	if called {
		t.Error("remote called after rejected apply")
	}
	if c.Get() != 1 {
		t.Errorf("cell = %d, want 1", c.Get())
	}
}

func TestRunOrder(t *testing.T) {
	var steps []string
	err := Run(context.Background(), Mutation{
		Name:   "order",
		Apply:  func() error { steps = append(steps, "apply"); return nil },
		Remote: func(context.Context) error { steps = append(steps, "remote"); return nil },
		Revert: func() { steps = append(steps, "revert") },
		Commit: func() { steps = append(steps, "commit") },
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"apply", "remote", "commit"}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("steps[%d] = %q, want %q", i, steps[i], want[i])
		}
	}
}
