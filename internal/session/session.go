// Package session assembles an experiment manifest into a runnable
// frame loop: resource preload first, then each block in order with
// its run condition and loop guard honored.
package session

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/psykit/psykit/internal/exprs"
	"github.com/psykit/psykit/pkg/psylib"
)

// RoutineFactory produces the tasks for one iteration of a block. The
// row is the block's condition row for this iteration, nil when the
// block has no conditions resource.
type RoutineFactory func(block Block, iteration int, row map[string]string) []psylib.Task

// Opts configures a Session. Manager is required; everything else has
// a usable zero value.
type Opts struct {
	Manager *psylib.ResourceManager
	Engine  *exprs.Engine
	Surface psylib.Surface
	Clock   psylib.FrameClock
	Logger  *log.Logger
	// Routines maps block names to their task factories. Blocks with
	// no factory run as empty routines, which still exercises their
	// conditions and resource waits.
	Routines map[string]RoutineFactory
}

// Session drives one participant's run through a manifest.
type Session struct {
	manifest *Manifest
	manager  *psylib.ResourceManager
	engine   *exprs.Engine
	surface  psylib.Surface
	clock    psylib.FrameClock
	routines map[string]RoutineFactory
	ended    atomic.Bool
	l        *log.Logger
}

// New validates the wiring and returns a Session ready to build its
// scheduler.
func New(m *Manifest, opts *Opts) (*Session, error) {
	if m == nil {
		return nil, fmt.Errorf("session needs a manifest")
	}
	if opts == nil || opts.Manager == nil {
		return nil, fmt.Errorf("session %q needs a resource manager", m.Name)
	}
	s := &Session{
		manifest: m,
		manager:  opts.Manager,
		engine:   opts.Engine,
		surface:  opts.Surface,
		clock:    opts.Clock,
		routines: opts.Routines,
		l:        opts.Logger,
	}
	if s.engine == nil {
		s.engine = exprs.New(opts.Logger)
	}
	if s.l == nil {
		s.l = log.Default()
	}
	return s, nil
}

// End marks the experiment over. Once set, a finishing block scheduler
// terminates the whole session instead of advancing to the next block.
func (s *Session) End() {
	s.ended.Store(true)
}

// Ended reports whether End has been called.
func (s *Session) Ended() bool {
	return s.ended.Load()
}

// Build registers the manifest's resources and assembles the root
// scheduler: one resource wait task, then one entry per block. Start
// the returned scheduler to run the session.
func (s *Session) Build(ctx context.Context) (*psylib.Scheduler, error) {
	if len(s.manifest.Resources) > 0 {
		if _, err := s.manager.RegisterResources(s.manifest.Resources...); err != nil {
			return nil, fmt.Errorf("registering session resources: %w", err)
		}
	}

	root := psylib.NewScheduler(&psylib.SchedulerOpts{
		Surface:         s.surface,
		Clock:           s.clock,
		ExperimentEnded: s.ended.Load,
		Logger:          s.l,
	})

	if len(s.manifest.Resources) > 0 {
		root.Add(psylib.FuncTask(s.manager.WaitForResources(ctx, s.manifest.ResourceNames()...)))
	}

	for _, block := range s.manifest.Blocks {
		sub := s.blockScheduler(ctx, block)
		if block.RunIf == "" {
			root.Add(psylib.SubTask(sub))
			continue
		}
		root.AddConditional(s.engine.Condition(block.RunIf), sub, s.emptyScheduler())
	}
	return root, nil
}

// blockScheduler builds the nested scheduler for one block: an optional
// per-block resource wait, then a dispatcher that unrolls iterations
// lazily so loop guards see up-to-date state.
func (s *Session) blockScheduler(ctx context.Context, block Block) *psylib.Scheduler {
	sub := psylib.NewScheduler(&psylib.SchedulerOpts{
		ExperimentEnded: s.ended.Load,
		Logger:          s.l,
	})
	if len(block.Resources) > 0 {
		sub.Add(psylib.FuncTask(s.manager.WaitForResources(ctx, block.Resources...)))
	}
	sub.Add(psylib.FuncTask(s.iterationDispatcher(block, sub)))
	return sub
}

// iterationDispatcher returns the task driving a block's loop. Each
// call decides whether another iteration runs: it binds the loop state,
// evaluates the guard, and on success enqueues the iteration's tasks
// followed by itself. Iterations unroll lazily so the guard always
// sees current state.
func (s *Session) iterationDispatcher(block Block, sub *psylib.Scheduler) psylib.TaskFunc {
	iteration := 0
	var rows []map[string]string
	rowsLoaded := false

	var dispatch psylib.TaskFunc
	dispatch = func(...any) (psylib.ControlSignal, error) {
		if s.ended.Load() {
			return psylib.SignalQuit, nil
		}
		// Conditions become available only after the preload wait has
		// run, so rows are resolved on the first dispatch.
		if !rowsLoaded {
			rows = s.conditionRows(block)
			rowsLoaded = true
		}
		if rows != nil && iteration >= len(rows) {
			return psylib.SignalNext, nil
		}

		var row map[string]string
		if rows != nil {
			row = rows[iteration]
		}
		vars := map[string]any{
			"blockName": block.Name,
			"iteration": iteration,
		}
		if row != nil {
			vars["trial"] = row
		}
		if block.LoopWhile != "" {
			ok, err := s.engine.EvalBool(block.LoopWhile, vars)
			if err != nil {
				return psylib.SignalQuit, fmt.Errorf("block %q loop guard: %w", block.Name, err)
			}
			if !ok {
				return psylib.SignalNext, nil
			}
		} else if rows == nil && iteration > 0 {
			// No guard and no condition rows: the block runs once.
			return psylib.SignalNext, nil
		}

		if factory := s.routines[block.Name]; factory != nil {
			for _, task := range factory(block, iteration, row) {
				sub.Add(task)
			}
		}
		iteration++
		sub.Add(psylib.FuncTask(dispatch))
		return psylib.SignalNext, nil
	}
	return dispatch
}

// conditionRows resolves the block's conditions resource into rows.
// Missing or not-yet-downloaded conditions yield nil, meaning the loop
// guard alone controls iteration count.
func (s *Session) conditionRows(block Block) []map[string]string {
	if block.Conditions == "" {
		return nil
	}
	data, err := s.manager.GetResource(block.Conditions, false)
	if err != nil || data == nil {
		return nil
	}
	table, ok := data.(*psylib.TabularData)
	if !ok {
		s.l.Printf("block %q: conditions %q is not tabular", block.Name, block.Conditions)
		return nil
	}
	return table.MapRows()
}

// emptyScheduler is the else-branch of a gated block.
func (s *Session) emptyScheduler() *psylib.Scheduler {
	return psylib.NewScheduler(&psylib.SchedulerOpts{
		ExperimentEnded: s.ended.Load,
		Logger:          s.l,
	})
}
