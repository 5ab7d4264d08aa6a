package commerce

import (
	"go.uber.org/zap"
)

// step is one unit of a compensated sequence. undo must exactly reverse do.
type step struct {
	name string
	do   func() error
	undo func()
}

// runSteps executes steps in order; on failure the completed ones are undone
// in reverse order and the failing error is returned.
func runSteps(log *zap.Logger, steps ...step) error {
	done := make([]step, 0, len(steps))
	for _, s := range steps {
		if err := s.do(); err != nil {
			log.Debug("step failed, compensating", zap.String("step", s.name), zap.Error(err))
			for i := len(done) - 1; i >= 0; i-- {
				done[i].undo()
			}
			return err
		}
		done = append(done, s)
	}
	return nil
}
