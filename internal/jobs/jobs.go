// Package jobs tracks background match runs started from uploads.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

type Result struct {
	Mode     string `json:"mode"`
	Rows     int    `json:"rows"`
	Skipped  int    `json:"skipped"`
	Output   string `json:"-"`
	Filename string `json:"filename"`
}

type Job struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	status   Status
	logs     []string
	progress int
	result   *Result
	err      string
	cancel   context.CancelFunc
}

// Snapshot is a copy of a job's state safe to hand to callers.
type Snapshot struct {
	ID       string   `json:"id"`
	Status   Status   `json:"status"`
	Progress int      `json:"progress"`
	Logs     []string `json:"logs"`
	Result   *Result  `json:"result,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func newJob(cancel context.CancelFunc) *Job {
	return &Job{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		status:    StatusRunning,
		logs:      []string{},
		cancel:    cancel,
	}
}

func (j *Job) Log(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.appendLog(msg)
}

func (j *Job) appendLog(msg string) {
	ts := time.Now().Format("15:04:05")
	j.logs = append(j.logs, fmt.Sprintf("[%s] %s", ts, msg))
}

func (j *Job) SetProgress(current, total int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if total > 0 {
		j.progress = int(float64(current) / float64(total) * 100)
	}
	if msg != "" {
		j.appendLog(msg)
	}
}

func (j *Job) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusError
	j.err = msg
	j.logs = append(j.logs, "[ERROR] "+msg)
	j.cancel()
}

func (j *Job) Finish(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusDone
	j.result = res
	j.progress = 100
	j.appendLog("Job completed.")
	j.cancel()
}

// Cancel asks the running match to stop. It is a no-op once the job ended.
func (j *Job) Cancel() {
	j.mu.RLock()
	running := j.status == StatusRunning
	j.mu.RUnlock()
	if running {
		j.Log("Cancel requested by user.")
		j.cancel()
	}
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	logs := make([]string, len(j.logs))
	copy(logs, j.logs)
	s := Snapshot{
		ID:       j.ID,
		Status:   j.status,
		Progress: j.progress,
		Logs:     logs,
		Error:    j.err,
	}
	if j.result != nil {
		r := *j.result
		s.Result = &r
	}
	return s
}

type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// New registers a running job and returns the context its work should run
// under. The context ends when the job is cancelled, finishes or fails.
func (s *Store) New(parent context.Context) (*Job, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	j := newJob(cancel)
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return j, ctx
}

func (s *Store) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// Len reports how many jobs the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Prune drops finished jobs created before the cutoff and returns how many were removed.
func (s *Store) Prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, j := range s.jobs {
		j.mu.RLock()
		done := j.status != StatusRunning
		j.mu.RUnlock()
		if done && j.CreatedAt.Before(before) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}
