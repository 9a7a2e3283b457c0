package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planByID(steps []PlanStep) map[string]PlanStep {
	out := make(map[string]PlanStep, len(steps))
	for _, s := range steps {
		out[s.ID] = s
	}
	return out
}

func TestPlanPredictsChain(t *testing.T) {
	dir := t.TempDir()
	seedReads(t, dir, "s1")
	g := buildGraph(t, dir, pipelineModel, "study t\nsample s1 parent=t\n")

	steps, err := Plan(g)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	byID := planByID(steps)
	assert.Equal(t, PlanRun, byID["s1.qc"].Action)
	// stats' input does not exist yet, but qc would produce it.
	assert.Equal(t, PlanRun, byID["s1.stats"].Action)

	// Order is topological.
	assert.Equal(t, "s1.qc", steps[0].ID)
	assert.Equal(t, "s1.stats", steps[1].ID)
}

func TestPlanAfterRunIsQuiet(t *testing.T) {
	dir := t.TempDir()
	seedReads(t, dir, "s1")
	instances := "study t\nsample s1 parent=t\n"

	runner := &stubRunner{}
	report := New(buildGraph(t, dir, pipelineModel, instances), runner, 4).Run(testContext())
	require.NoError(t, report.Err())

	steps, err := Plan(buildGraph(t, dir, pipelineModel, instances))
	require.NoError(t, err)
	for _, step := range steps {
		assert.Equal(t, PlanUpToDate, step.Action, step.ID)
	}
}

func TestPlanPropagatesSkipAndFail(t *testing.T) {
	model := `
class study
class sample parent=study

prop sample deep default=false

file sample reads path=$instance/reads.fq
file sample clean path=$instance/clean.fq
file sample report path=$instance/report.txt

cmd sample qc in=reads out=clean run_if=deep:eq:true args="qc !{input:reads} > !{output:clean}"
cmd sample report in=clean out=report args="rep !{input:clean} > !{output:report}"
`
	t.Run("skip propagates", func(t *testing.T) {
		dir := t.TempDir()
		seedReads(t, dir, "s1")
		steps, err := Plan(buildGraph(t, dir, model, "study t\nsample s1 parent=t\n"))
		require.NoError(t, err)

		byID := planByID(steps)
		assert.Equal(t, PlanSkip, byID["s1.qc"].Action)
		assert.Equal(t, PlanSkip, byID["s1.report"].Action)
	})

	t.Run("missing source predicts failure", func(t *testing.T) {
		dir := t.TempDir() // no reads seeded
		steps, err := Plan(buildGraph(t, dir, model, "study t\nsample s1 parent=t deep=true\n"))
		require.NoError(t, err)

		byID := planByID(steps)
		assert.Equal(t, PlanFail, byID["s1.qc"].Action)
	})
}
