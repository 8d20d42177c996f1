package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	subscriberBuffer  = 10
	keepaliveInterval = 30 * time.Second
)

// ProgressEvent is one snapshot of a job, sent to stream subscribers
type ProgressEvent struct {
	JobID       string    `json:"jobId"`
	Seq         uint64    `json:"seq"`
	State       JobState  `json:"state"`
	Iterations  int       `json:"iterations"`
	BestCost    float64   `json:"bestCost"`
	CurrentCost float64   `json:"currentCost,omitempty"`
	Routes      int       `json:"routes,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MeanGamma   float64   `json:"meanGamma,omitempty"`
	MeanOmega   float64   `json:"meanOmega,omitempty"`
	IPS         float64   `json:"ips"`
	Timestamp   time.Time `json:"timestamp"`
}

// name is the SSE event type: "progress" while the job runs, its final state afterwards
func (e ProgressEvent) name() string {
	if e.State.Finished() {
		return string(e.State)
	}
	return "progress"
}

// jobFeed holds the subscribers of one job and the event a late subscriber starts from
type jobFeed struct {
	subscribers map[chan ProgressEvent]struct{}
	last        *ProgressEvent
	seq         uint64
}

// EventBroadcaster fans job events out to stream subscribers. Slow subscribers miss
// events instead of stalling the solver.
type EventBroadcaster struct {
	mu    sync.Mutex
	feeds map[string]*jobFeed
}

func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{feeds: make(map[string]*jobFeed)}
}

func (eb *EventBroadcaster) feed(jobID string) *jobFeed {
	f, ok := eb.feeds[jobID]
	if !ok {
		f = &jobFeed{subscribers: make(map[chan ProgressEvent]struct{})}
		eb.feeds[jobID] = f
	}
	return f
}

// Subscribe returns a channel of the job's events, primed with its latest event
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, subscriberBuffer)
	f := eb.feed(jobID)
	f.subscribers[ch] = struct{}{}
	if f.last != nil {
		ch <- *f.last
	}
	slog.Debug("Stream subscriber added", "job_id", jobID, "subscribers", len(f.subscribers))
	return ch
}

// Unsubscribe closes ch. Unknown or already closed channels are ignored.
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	f, ok := eb.feeds[jobID]
	if !ok {
		return
	}
	if _, ok := f.subscribers[ch]; !ok {
		return
	}
	delete(f.subscribers, ch)
	close(ch)
	slog.Debug("Stream subscriber removed", "job_id", jobID, "subscribers", len(f.subscribers))
}

// Broadcast numbers event and delivers it to every subscriber with room for it
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	f := eb.feed(event.JobID)
	f.seq++
	event.Seq = f.seq
	f.last = &event

	dropped := 0
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		slog.Warn("Stream subscribers lagging, event dropped", "job_id", event.JobID, "seq", event.Seq, "dropped", dropped)
	}
}

// CleanupJob closes every subscription of a deleted job and forgets its events
func (eb *EventBroadcaster) CleanupJob(jobID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	f, ok := eb.feeds[jobID]
	if !ok {
		return
	}
	for ch := range f.subscribers {
		close(ch)
	}
	delete(eb.feeds, jobID)
}

// snapshotEvent describes the job as it is now
func snapshotEvent(job *Job) ProgressEvent {
	return ProgressEvent{
		JobID:       job.ID,
		State:       job.State,
		Iterations:  job.Iterations,
		BestCost:    job.BestCost,
		CurrentCost: job.CurrentCost,
		Routes:      len(job.Routes),
		IPS:         iterationsPerSecond(job.Iterations, job.Elapsed()),
		Timestamp:   time.Now(),
	}
}

// handleJobStream streams job events as server-sent events until the job finishes or
// the client goes away
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	send := func(event ProgressEvent) bool {
		if err := writeEvent(w, event); err != nil {
			slog.Warn("Stream write failed", "job_id", jobID, "error", err)
			return false
		}
		flusher.Flush()
		return !event.State.Finished()
	}

	if !send(snapshotEvent(job)) {
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok || !send(event) {
				return
			}
		case <-keepalive.C:
			io.WriteString(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeEvent writes one SSE frame. Snapshots that did not pass through the broadcaster
// carry no id.
func writeEvent(w io.Writer, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if event.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", event.Seq); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.name(), data)
	return err
}
