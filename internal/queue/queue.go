// Package queue carries asynchronous generation jobs. Callers that do not
// need a synchronous answer enqueue a job; workers route it and publish the
// outcome on a response queue.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/draftforge/genroute/internal/domain"
)

type GenerateJob struct {
	ID        string                 `json:"id"`
	Request   domain.GenerateRequest `json:"request"`
	CreatedAt time.Time              `json:"created_at"`
}

type GenerateOutcome struct {
	JobID     string                 `json:"job_id"`
	Result    *domain.GenerateResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type Queue interface {
	SendJob(ctx context.Context, job GenerateJob) error
	ReceiveJobs(ctx context.Context, maxJobs int) ([]GenerateJob, error)
	SendOutcome(ctx context.Context, outcome GenerateOutcome) error
}

type SQSQueue struct {
	client          *sqs.Client
	jobQueueURL     string
	outcomeQueueURL string
}

func NewSQSQueue(ctx context.Context, region, jobQueueURL, outcomeQueueURL string) (*SQSQueue, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSQueueFromConfig(cfg, jobQueueURL, outcomeQueueURL), nil
}

func NewSQSQueueFromConfig(cfg aws.Config, jobQueueURL, outcomeQueueURL string) *SQSQueue {
	return &SQSQueue{
		client:          sqs.NewFromConfig(cfg),
		jobQueueURL:     jobQueueURL,
		outcomeQueueURL: outcomeQueueURL,
	}
}

func (q *SQSQueue) SendJob(ctx context.Context, job GenerateJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.jobQueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"JobID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.ID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send job: %w", err)
	}
	return nil
}

func (q *SQSQueue) ReceiveJobs(ctx context.Context, maxJobs int) ([]GenerateJob, error) {
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.jobQueueURL),
		MaxNumberOfMessages:   int32(maxJobs),
		WaitTimeSeconds:       20,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("receive jobs: %w", err)
	}

	jobs := make([]GenerateJob, 0, len(result.Messages))
	for _, msg := range result.Messages {
		var job GenerateJob
		if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
			slog.Warn("failed to unmarshal job", "error", err)
			continue
		}
		jobs = append(jobs, job)

		// Delete on receipt: a failed job is reported on the outcome
		// queue rather than redelivered.
		_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.jobQueueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		if err != nil {
			slog.Warn("failed to delete job message", "job_id", job.ID, "error", err)
		}
	}
	return jobs, nil
}

func (q *SQSQueue) SendOutcome(ctx context.Context, outcome GenerateOutcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.outcomeQueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"JobID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(outcome.JobID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send outcome: %w", err)
	}
	return nil
}

type InMemoryQueue struct {
	mu       sync.Mutex
	jobs     []GenerateJob
	outcomes []GenerateOutcome
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

func (q *InMemoryQueue) SendJob(ctx context.Context, job GenerateJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *InMemoryQueue) ReceiveJobs(ctx context.Context, maxJobs int) ([]GenerateJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := maxJobs
	if count > len(q.jobs) {
		count = len(q.jobs)
	}

	result := make([]GenerateJob, count)
	copy(result, q.jobs[:count])
	q.jobs = q.jobs[count:]
	return result, nil
}

func (q *InMemoryQueue) SendOutcome(ctx context.Context, outcome GenerateOutcome) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.outcomes = append(q.outcomes, outcome)
	return nil
}

func (q *InMemoryQueue) Outcomes() []GenerateOutcome {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]GenerateOutcome, len(q.outcomes))
	copy(result, q.outcomes)
	return result
}
