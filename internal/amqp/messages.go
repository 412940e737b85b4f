package amqp

import (
	"encoding/json"
	"time"
)

// SendJob asks the worker to deliver a rendered simulation message.
type SendJob struct {
	ID           string    `json:"id"`
	SimulationID string    `json:"simulationId,omitempty"`
	Text         string    `json:"text"`
	RequestedBy  string    `json:"requestedBy,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ToJSON converts the job to JSON bytes.
func (j *SendJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// SendJobFromJSON decodes a job.
func SendJobFromJSON(data []byte) (*SendJob, error) {
	var job SendJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
