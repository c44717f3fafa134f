package muzerotrain

import "log"

// A Logger logs status messages which are produced
// during training.
type Logger interface {
	LogStep(res *StepResult)
	LogCheckpoint(step int)
	LogEvent(msg string)
}

// StandardLogger is a Logger which uses the log package.
//
// A field of name <N> controls whether or not the Log<N>
// method does anything. LogEvent is always active.
type StandardLogger struct {
	Step       bool
	Checkpoint bool
}

// LogStep logs the diagnostics of one optimizer step.
func (s *StandardLogger) LogStep(res *StepResult) {
	if s.Step {
		log.Printf("step %d: lr=%f loss=%f value=%f reward=%f policy=%f "+
			"reconstruction=%f consistency=%f", res.Step, res.LR,
			res.TotalLoss, res.ValueLoss, res.RewardLoss, res.PolicyLoss,
			res.ReconstructionLoss, res.ConsistencyLoss)
	}
}

// LogCheckpoint logs a checkpoint publication.
func (s *StandardLogger) LogCheckpoint(step int) {
	if s.Checkpoint {
		log.Printf("checkpoint: step=%d", step)
	}
}

// LogEvent logs a one-off event message.
func (s *StandardLogger) LogEvent(msg string) {
	log.Print(msg)
}
