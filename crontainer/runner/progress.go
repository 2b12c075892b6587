package runner

import "time"

// NominalDuration is how long a script is assumed to take. The percentage
// reported while a script runs is derived from it, not measured.
const NominalDuration = 60 * time.Second

// MaxRunningPercent is the highest percentage reported while the script is
// still running.
const MaxRunningPercent = 95

// Progress is a synthetic, monotonically increasing completion estimate.
type Progress struct {
	step    int
	percent int
}

// NewProgress creates an estimate that advances once per heartbeat, adding
// 100 / (NominalDuration / heartbeat) percent each time.
func NewProgress(heartbeat time.Duration) *Progress {
	beats := int(NominalDuration / heartbeat)
	if beats < 1 {
		beats = 1
	}

	step := 100 / beats
	if step < 1 {
		step = 1
	}

	return &Progress{step: step}
}

// Tick advances the estimate by one heartbeat and returns it. The result
// never exceeds MaxRunningPercent.
func (p *Progress) Tick() int {
	p.percent += p.step
	if p.percent > MaxRunningPercent {
		p.percent = MaxRunningPercent
	}
	return p.percent
}

// Complete marks the script as done and returns 100.
func (p *Progress) Complete() int {
	p.percent = 100
	return p.percent
}
