package generation

// JobState is the remote backend's view of an async generation job.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// JobStatus is one poll result for a backend job.
type JobStatus struct {
	JobID    string     `json:"job_id"`
	State    JobState   `json:"status"`
	Progress int        `json:"progress"`
	Stage    string     `json:"stage"`
	Error    string     `json:"error,omitempty"`
	Result   *JobResult `json:"result,omitempty"`
}

// JobResult carries the generated content once a job completes.
type JobResult struct {
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Done reports whether the job reached a terminal state on the backend.
func (j *JobStatus) Done() bool {
	return j.State == JobStateCompleted || j.State == JobStateFailed
}
