package scheduler

// JobKey identifies a job by name and group. Group defaults to "DEFAULT"
// when unset, matching how triggers address a job when group is omitted.
type JobKey struct {
	Name  string
	Group string
}

func (k JobKey) normalize() JobKey {
	if k.Group == "" {
		k.Group = DefaultGroup
	}
	return k
}

func (k JobKey) String() string {
	k = k.normalize()
	return k.Group + "." + k.Name
}

// DefaultGroup is used for jobs and triggers whose Group is left empty.
const DefaultGroup = "DEFAULT"

// Job is user code invoked on each fire. A fresh instance is produced per
// fire by the JobDetail's factory, so Job implementations may hold
// per-execution state without synchronization.
type Job interface {
	// DoRun executes the job body. Implementations should poll
	// ctx.IsInterrupted() during long-running work and return promptly
	// when it becomes true.
	DoRun(ctx *JobContext) error
	// Cleanup always runs after DoRun, whether it returned an error,
	// panicked, or completed normally.
	Cleanup()
}

// JobFactory produces a fresh Job instance for one fire.
type JobFactory func() Job

// JobDetail is the stored, durable description of a job: identity,
// factory, and scheduling flags. It does not itself execute; Job
// instances it produces do.
type JobDetail struct {
	Key         JobKey
	Description string
	Factory     JobFactory
	Data        map[string]any

	// Durable jobs survive having zero triggers. Non-durable jobs are
	// removed automatically when their last trigger is removed.
	Durable bool

	// DisallowConcurrentExecution keeps at most one fire of this job
	// executing at a time; other due triggers for it are held BLOCKED.
	DisallowConcurrentExecution bool

	// RequestsRecovery is informational only: this implementation has no
	// persistence across restarts to recover from.
	RequestsRecovery bool
}

func (jd *JobDetail) dataSnapshot() map[string]any {
	if len(jd.Data) == 0 {
		return nil
	}
	out := make(map[string]any, len(jd.Data))
	for k, v := range jd.Data {
		out[k] = v
	}
	return out
}
