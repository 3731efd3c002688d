package cp_test

import (
	"context"
	"fmt"

	"github.com/gitrdm/gokanplan/pkg/cp"
)

// ExampleNewRangeDomain shows how narrowing returns new domains.
func ExampleNewRangeDomain() {
	d := cp.NewRangeDomain(3, 9)
	fmt.Println(d)
	fmt.Println(d.RemoveBelow(5).RemoveAbove(7))
	fmt.Println(d.Remove(6))
	// Output:
	// {3..9}
	// {5..7}
	// {3,4,5,7,8,9}
}

// ExampleMinimize schedules two jobs on one machine and minimizes the
// makespan.
func ExampleMinimize() {
	model := cp.NewModel()
	a := model.IntVar(0, 10, "a")
	b := model.IntVar(0, 10, "b")
	makespan := model.IntVar(0, 13, "makespan")
	_ = model.NoOverlap([]cp.Interval{{Start: a, Duration: 2}, {Start: b, Duration: 3}})
	_ = model.MaxEquality(makespan, []*cp.IntVar{a, b}, []int{2, 3})

	res, err := cp.Minimize(context.Background(), model, makespan)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(res.Status, res.Value(makespan))
	// Output:
	// OPTIMAL 5
}

// ExampleModel_NoOverlap uses presence literals to pick one of two
// machines for a job.
func ExampleModel_NoOverlap() {
	model := cp.NewModel()
	blocker := model.IntVar(0, 0, "blocker")
	job := model.IntVar(0, 0, "job")
	onM1 := model.BoolVar("job@m1")
	onM2 := model.BoolVar("job@m2")
	_ = model.ExactlyOne([]*cp.IntVar{onM1, onM2})
	// m1 is blocked over [0, 4)
	_ = model.NoOverlap([]cp.Interval{
		{Start: blocker, Duration: 4},
		{Start: job, Duration: 2, Presence: onM1},
	})
	_ = model.NoOverlap([]cp.Interval{{Start: job, Duration: 2, Presence: onM2}})
	end := model.IntVar(0, 10, "end")
	_ = model.MaxEquality(end, []*cp.IntVar{job}, []int{2})

	res, _ := cp.Minimize(context.Background(), model, end)
	fmt.Println(res.Status, res.Value(onM1), res.Value(onM2))
	// Output:
	// OPTIMAL 0 1
}
