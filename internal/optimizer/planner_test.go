package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/ecodrive/internal/energy"
	"github.com/langchou/ecodrive/internal/models"
)

func TestPlanners_AreInterchangeable(t *testing.T) {
	env := models.Environment{Terrain: models.TerrainDownhill, Temperature: 30}
	planners := []Planner{
		&DynamicPlanner{Solver: NewDynamicSolver(), Rand: NewRand(1), Candidates: 12},
		&GeneticPlanner{
			Solver:           NewGeneticSolver(NewRand(1)),
			ChromosomeLength: 12,
			PopulationSize:   30,
			Generations:      5,
			MutationRate:     0.1,
		},
	}

	for _, p := range planners {
		plan, err := p.Plan(0.6, env)
		require.NoError(t, err, p.Algorithm())
		assert.Equal(t, p.Algorithm(), plan.Algorithm)
		assert.Equal(t, 0.6, plan.Budget)
		assert.Positive(t, plan.Distance)
		assert.LessOrEqual(t, plan.Energy, 0.6)
		assert.NotEmpty(t, plan.Actions)
	}
}

func TestDynamicPlanner_ActionsFitBudget(t *testing.T) {
	env := models.Environment{Terrain: models.TerrainUphill, Temperature: 0}
	p := &DynamicPlanner{Rand: NewRand(7), Candidates: 14}

	plan, err := p.Plan(0.7, env)
	require.NoError(t, err)

	_, used := energy.Sequence(plan.Actions, env, DefaultStepDuration)
	assert.InDelta(t, plan.Energy, used, 1e-9)
	assert.LessOrEqual(t, used, 0.7)
}

func TestDynamicPlanner_NegativeCandidates(t *testing.T) {
	p := &DynamicPlanner{Candidates: -1}
	_, err := p.Plan(1, models.Environment{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGeneticPlanner_KeepsLastResult(t *testing.T) {
	p := &GeneticPlanner{
		Solver:           NewGeneticSolver(NewRand(3)),
		ChromosomeLength: 10,
		PopulationSize:   20,
		Generations:      3,
		MutationRate:     0.2,
	}
	plan, err := p.Plan(0.4, models.Environment{Temperature: 20})
	require.NoError(t, err)
	require.NotNil(t, p.LastResult)
	assert.Len(t, p.LastResult.History, 4)
	assert.Equal(t, p.LastResult.Fitness, plan.Distance)
}
