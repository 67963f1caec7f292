package pow

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single search. Hitting it is a hard failure, not
// a silent retry.
const DefaultTimeout = 30 * time.Second

// DefaultBatchSize is the number of nonces a worker tries between
// cancellation checks, keeping the host responsive during a search.
const DefaultBatchSize = 4096

// Solver runs parallel stride workers over disjoint nonce residue classes.
type Solver struct {
	workers   int
	batchSize uint64
	timeout   time.Duration
	algorithm Algorithm
	logger    *zap.Logger
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// WithWorkers sets the number of parallel search units.
func WithWorkers(n int) SolverOption {
	return func(s *Solver) { s.workers = n }
}

// WithBatchSize sets the nonces tried between cancellation checks.
func WithBatchSize(n uint64) SolverOption {
	return func(s *Solver) { s.batchSize = n }
}

// WithTimeout overrides the global search deadline.
func WithTimeout(d time.Duration) SolverOption {
	return func(s *Solver) { s.timeout = d }
}

// WithAlgorithm selects the challenge hash.
func WithAlgorithm(alg Algorithm) SolverOption {
	return func(s *Solver) { s.algorithm = alg }
}

// WithSolverLogger attaches a structured logger.
func WithSolverLogger(l *zap.Logger) SolverOption {
	return func(s *Solver) { s.logger = l }
}

// NewSolver creates a solver with sensible defaults.
func NewSolver(opts ...SolverOption) *Solver {
	s := &Solver{
		workers:   runtime.NumCPU(),
		batchSize: DefaultBatchSize,
		timeout:   DefaultTimeout,
		algorithm: AlgSHA256,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.batchSize == 0 {
		s.batchSize = DefaultBatchSize
	}
	return s
}

// Solve searches under the solver's configured algorithm.
func (s *Solver) Solve(ctx context.Context, challenge string, difficulty int) (*Solution, error) {
	return s.SolveWith(ctx, s.algorithm, challenge, difficulty)
}

// SolveWith searches for a nonce whose digest has at least difficulty
// leading zero bits under a caller-selected algorithm, for servers that
// pick the hash per challenge. Worker i starts at nonce i and steps by the
// worker count, so the units cover disjoint residue classes with no shared
// mutable state. The first solution cancels the remaining workers; a worker
// that finds a solution after cancellation is simply ignored.
func (s *Solver) SolveWith(ctx context.Context, alg Algorithm, challenge string, difficulty int) (*Solution, error) {
	if difficulty <= 0 || difficulty > 256 {
		return nil, ErrBadDifficulty.Wrapf("%d", difficulty)
	}
	if !alg.Valid() {
		return nil, ErrBadDifficulty.Wrapf("unsupported algorithm %q", alg)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	results := make(chan uint64, s.workers)
	var wg sync.WaitGroup

	stride := uint64(s.workers)
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(offset uint64) {
			defer wg.Done()
			s.search(ctx, alg, challenge, difficulty, offset, stride, results)
		}(uint64(i))
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	select {
	case nonce, ok := <-results:
		cancel()
		if !ok {
			// All workers exited without a solution: the deadline fired.
			return nil, ErrTimeout.Wrapf("difficulty %d after %s", difficulty, time.Since(start))
		}
		s.logger.Debug("proof of work solved",
			zap.Int("difficulty", difficulty),
			zap.Uint64("nonce", nonce),
			zap.Duration("elapsed", time.Since(start)),
		)
		return &Solution{Challenge: challenge, Nonce: nonce, Algorithm: alg}, nil

	case <-ctx.Done():
		wg.Wait()
		// A worker may have won the race against the deadline.
		select {
		case nonce, ok := <-results:
			if ok {
				return &Solution{Challenge: challenge, Nonce: nonce, Algorithm: alg}, nil
			}
		default:
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout.Wrapf("difficulty %d after %s", difficulty, time.Since(start))
		}
		return nil, ctx.Err()
	}
}

// search scans one residue class in bounded batches, yielding between
// batches so the host is not monopolized.
func (s *Solver) search(ctx context.Context, alg Algorithm, challenge string, difficulty int, offset, stride uint64, results chan<- uint64) {
	nonce := offset
	for {
		for i := uint64(0); i < s.batchSize; i++ {
			if LeadingZeroBits(Digest(alg, challenge, nonce)) >= difficulty {
				select {
				case results <- nonce:
				default:
				}
				return
			}
			nonce += stride
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
