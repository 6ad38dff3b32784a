package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/charmbracelet/log"

	"locinet/internal/locus"
	"locinet/internal/logging"
	"locinet/internal/network"
	"locinet/internal/subnet"
)

const DefaultMaxGenerations = 1000

type Status string

const (
	StatusInitialized    Status = "initialized"
	StatusIterating      Status = "iterating"
	StatusConverged      Status = "converged"
	StatusMaxGenerations Status = "max_generations"
	StatusCancelled      Status = "cancelled"
)

type GenerationDiagnostics struct {
	Generation          int     `json:"generation"`
	PopulationDensity   float64 `json:"population_density"`
	MeanDensity         float64 `json:"mean_density"`
	BestDensity         float64 `json:"best_density"`
	MinDensity          float64 `json:"min_density"`
	RelativeChange      float64 `json:"relative_change"`
	Mutations           int     `json:"mutations"`
	Crossovers          int     `json:"crossovers"`
	SelectionPoolSize   int     `json:"selection_pool_size"`
	DistinctSubnetworks int     `json:"distinct_subnetworks"`
}

type RunResult struct {
	Status                Status
	Generations           int
	DensityHistory        []float64
	GenerationDiagnostics []GenerationDiagnostics
	FinalPopulation       subnet.Population
}

type MonitorConfig struct {
	Graph                *network.Graph
	Loci                 locus.Set
	Mutation             Operator
	Crossover            Crossover
	Selector             Selector
	PopulationSize       int
	ConvergenceThreshold float64
	MaxGenerations       int
	Workers              int
	Seed                 int64
	Logger               *log.Logger
}

// PopulationMonitor drives the mutate, rebuild, select, mate loop until the
// population density stops moving. A monitor is not safe for concurrent Run
// calls.
type PopulationMonitor struct {
	cfg    MonitorConfig
	rng    *rand.Rand
	logger *log.Logger
	status Status
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("interaction graph is required")
	}
	if cfg.Loci.Len() == 0 {
		return nil, &locus.EmptyLociError{Index: -1}
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.ConvergenceThreshold < 0 {
		return nil, fmt.Errorf("convergence threshold must be >= 0")
	}
	if cfg.ConvergenceThreshold == 0 {
		cfg.ConvergenceThreshold = DefaultConvergenceThreshold
	}
	if cfg.MaxGenerations < 0 {
		return nil, fmt.Errorf("max generations must be >= 0")
	}
	if cfg.MaxGenerations == 0 {
		cfg.MaxGenerations = DefaultMaxGenerations
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Mutation == nil {
		cfg.Mutation = LocusMutation{Loci: cfg.Loci, Rate: DefaultMutationRate}
	}
	if cfg.Crossover == nil {
		cfg.Crossover = LocusCrossover{}
	}
	if cfg.Selector == nil {
		cfg.Selector = FitnessProportionalSelector{Scale: DefaultSelectionScale}
	}

	return &PopulationMonitor{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logging.OrDiscard(cfg.Logger),
		status: StatusInitialized,
	}, nil
}

func (m *PopulationMonitor) Status() Status {
	return m.status
}

func (m *PopulationMonitor) Run(ctx context.Context, initial subnet.Population) (RunResult, error) {
	if len(initial) != m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), m.cfg.PopulationSize)
	}
	for i, s := range initial {
		if s.Len() != m.cfg.Loci.Len() {
			return RunResult{}, fmt.Errorf("%w: subnetwork %d has %d nodes, want %d", ErrLocusMismatch, i, s.Len(), m.cfg.Loci.Len())
		}
	}

	population := make(subnet.Population, len(initial))
	copy(population, initial)

	previous := subnet.PopulationDensity(population)
	history := []float64{previous}
	diagnostics := []GenerationDiagnostics{summarizeGeneration(population, 0)}
	m.status = StatusIterating
	m.logger.Info("evolution started",
		"population", len(population),
		"loci", m.cfg.Loci.Len(),
		"density", previous,
		"mutation", m.cfg.Mutation.Name(),
		"selector", m.cfg.Selector.Name(),
	)

	for gen := 1; gen <= m.cfg.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			m.status = StatusCancelled
			return RunResult{}, err
		}

		next, diag, err := m.nextGeneration(ctx, population, gen)
		if err != nil {
			if ctx.Err() != nil {
				m.status = StatusCancelled
			}
			return RunResult{}, err
		}
		current := subnet.PopulationDensity(next)
		converged, change := Converged(previous, current, m.cfg.ConvergenceThreshold)
		diag.RelativeChange = change
		diagnostics = append(diagnostics, diag)
		history = append(history, current)
		population = next
		previous = current

		m.logger.Debug("generation complete",
			"generation", gen,
			"density", current,
			"change", change,
			"mutations", diag.Mutations,
			"crossovers", diag.Crossovers,
		)
		if converged {
			m.status = StatusConverged
			break
		}
	}
	if m.status != StatusConverged {
		m.status = StatusMaxGenerations
		m.logger.Warn("evolution stopped before convergence", "max_generations", m.cfg.MaxGenerations, "density", previous)
	} else {
		m.logger.Info("evolution converged", "generations", len(history)-1, "density", previous)
	}

	return RunResult{
		Status:                m.status,
		Generations:           len(history) - 1,
		DensityHistory:        history,
		GenerationDiagnostics: diagnostics,
		FinalPopulation:       population,
	}, nil
}

// nextGeneration runs one mutate, rebuild, select, mate, rebuild cycle. The
// master RNG hands every subnetwork a child seed and draws all partners, so
// the outcome does not depend on the worker count.
func (m *PopulationMonitor) nextGeneration(ctx context.Context, population subnet.Population, generation int) (subnet.Population, GenerationDiagnostics, error) {
	seeds := make([]int64, len(population))
	for i := range seeds {
		seeds[i] = m.rng.Int63()
	}
	rngs := make([]*rand.Rand, len(population))

	mutated := make(subnet.Population, len(population))
	mutations := make([]int, len(population))
	err := m.forEach(ctx, len(population), func(i int) error {
		rngs[i] = rand.New(rand.NewSource(seeds[i]))
		nodes, changed, err := m.cfg.Mutation.Apply(rngs[i], population[i].Nodes())
		if err != nil {
			return fmt.Errorf("mutate subnetwork %d: %w", i, err)
		}
		mutations[i] = changed
		if changed == 0 {
			mutated[i] = population[i]
			return nil
		}
		rebuilt, err := subnet.Induce(m.cfg.Graph, nodes)
		if err != nil {
			return fmt.Errorf("rebuild subnetwork %d: %w", i, err)
		}
		mutated[i] = rebuilt
		return nil
	})
	if err != nil {
		return nil, GenerationDiagnostics{}, err
	}

	densities := make([]float64, len(mutated))
	for i, s := range mutated {
		densities[i] = subnet.EdgeDensity(s)
	}
	pool, err := m.cfg.Selector.Pool(densities)
	if err != nil {
		return nil, GenerationDiagnostics{}, err
	}
	partners := make([]int, len(mutated))
	for i := range partners {
		partners[i], err = m.cfg.Selector.PickPartner(m.rng, pool)
		if err != nil {
			return nil, GenerationDiagnostics{}, err
		}
	}

	next := make(subnet.Population, len(mutated))
	crossovers := make([]int, len(mutated))
	err = m.forEach(ctx, len(mutated), func(i int) error {
		nodes, taken, err := m.cfg.Crossover.Cross(rngs[i], mutated[i].Nodes(), mutated[partners[i]].Nodes())
		if err != nil {
			return fmt.Errorf("mate subnetwork %d with %d: %w", i, partners[i], err)
		}
		crossovers[i] = taken
		if taken == 0 {
			next[i] = mutated[i]
			return nil
		}
		child, err := subnet.Induce(m.cfg.Graph, nodes)
		if err != nil {
			return fmt.Errorf("rebuild offspring %d: %w", i, err)
		}
		next[i] = child
		return nil
	})
	if err != nil {
		return nil, GenerationDiagnostics{}, err
	}

	diag := summarizeGeneration(next, generation)
	diag.SelectionPoolSize = len(pool)
	for i := range next {
		diag.Mutations += mutations[i]
		diag.Crossovers += crossovers[i]
	}
	return next, diag, nil
}

// forEach fans indices out to the configured workers and returns the first
// error.
func (m *PopulationMonitor) forEach(ctx context.Context, n int, fn func(i int) error) error {
	workerCount := m.cfg.Workers
	if workerCount > n {
		workerCount = n
	}
	if workerCount <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	jobs := make(chan int)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					errs <- err
					continue
				}
				if err := fn(i); err != nil {
					errs <- err
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func summarizeGeneration(population subnet.Population, generation int) GenerationDiagnostics {
	if len(population) == 0 {
		return GenerationDiagnostics{Generation: generation}
	}
	total := 0.0
	best := subnet.EdgeDensity(population[0])
	min := best
	distinct := make(map[string]struct{}, len(population))
	for _, s := range population {
		d := subnet.EdgeDensity(s)
		total += d
		if d > best {
			best = d
		}
		if d < min {
			min = d
		}
		distinct[s.Key()] = struct{}{}
	}
	return GenerationDiagnostics{
		Generation:          generation,
		PopulationDensity:   total,
		MeanDensity:         total / float64(len(population)),
		BestDensity:         best,
		MinDensity:          min,
		DistinctSubnetworks: len(distinct),
	}
}
