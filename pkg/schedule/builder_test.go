package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Shape(t *testing.T) {
	p := Problem{
		Workers:  []Resource{{ID: "w0", Types: TagSet{"A"}}, {ID: "w1", Types: TagSet{"B"}}},
		Machines: []Resource{{ID: "m0", Types: TagSet{"A", "B"}}, {ID: "m1", Types: TagSet{"C"}}},
		Tasks: []Task{
			{ID: "a", Type: "A", Duration: 2, EarliestStart: 1, Deadline: 9},
			{ID: "b", Type: "B", Duration: 3, Deadline: 12},
		},
	}
	f, err := Build(p)
	require.NoError(t, err)

	assert.Equal(t, 12, f.Horizon)
	assert.Equal(t, "{1..7}", f.Start[0].Domain().String())
	assert.Equal(t, "{0..9}", f.Start[1].Domain().String())
	assert.Equal(t, "{0..12}", f.Makespan.Domain().String())

	// incompatible pairs are fixed to 0
	assert.Equal(t, "{0..1}", f.WorkerLit[0][0].Domain().String())
	assert.Equal(t, "{0}", f.WorkerLit[0][1].Domain().String())
	assert.Equal(t, "{0}", f.MachineLit[1][1].Domain().String())

	// 2 tasks x 2 ExactlyOne, NoOverlap on w0, w1, m0 (m1 runs nothing), makespan
	assert.Equal(t, 4+3+1, f.Model.ConstraintCount())
}

func TestBuild_StructuralInfeasibility(t *testing.T) {
	p := Problem{
		Workers:  []Resource{{ID: "0", Types: TagSet{"A"}}},
		Machines: []Resource{{ID: "0", Types: TagSet{"A"}}},
		Tasks:    []Task{{ID: "0", Type: "A", Duration: 3, EarliestStart: 1, Deadline: 3}},
	}
	_, err := Build(p)
	var inf *InfeasibleError
	require.ErrorAs(t, err, &inf)
	assert.Equal(t, CauseStructural, inf.Cause)
	assert.Equal(t, ID("0"), inf.TaskID)
	assert.ErrorIs(t, err, ErrNoFeasibleSchedule)
}

func TestBuild_RejectsBusyWindows(t *testing.T) {
	_, err := Build(busyProblem())
	assert.ErrorIs(t, err, ErrInvalidProblem)
}

func TestBuild_EmptyProblem(t *testing.T) {
	f, err := Build(Problem{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.Horizon)
	assert.Equal(t, "{0}", f.Makespan.Domain().String())
}
