// Package notifications publishes operator alerts for breaker transitions.
// An SNS topic backs production deployments; the in-memory notifier serves
// tests and setups without AWS.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type NotificationType string

const (
	NotificationProviderDown NotificationType = "provider_down"
	NotificationProviderUp   NotificationType = "provider_up"
)

type Notification struct {
	Type     NotificationType `json:"type"`
	Provider string           `json:"provider"`
	Message  string           `json:"message"`
	Data     map[string]any   `json:"data,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

type SNSNotifier struct {
	client   *sns.Client
	topicArn string
}

func NewSNSNotifier(ctx context.Context, region, topicArn string) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSNotifierFromConfig(cfg, topicArn), nil
}

func NewSNSNotifierFromConfig(cfg aws.Config, topicArn string) *SNSNotifier {
	return &SNSNotifier{
		client:   sns.NewFromConfig(cfg),
		topicArn: topicArn,
	}
}

func (n *SNSNotifier) Send(ctx context.Context, notification Notification) error {
	message, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Message:  aws.String(string(message)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"Type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(notification.Type)),
			},
			"Provider": {
				DataType:    aws.String("String"),
				StringValue: aws.String(notification.Provider),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	slog.Info("notification sent",
		"type", notification.Type,
		"provider", notification.Provider,
	)
	return nil
}

type InMemoryNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func NewInMemoryNotifier() *InMemoryNotifier {
	return &InMemoryNotifier{}
}

func (n *InMemoryNotifier) Send(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	slog.Info("notification sent (in-memory)",
		"type", notification.Type,
		"provider", notification.Provider,
	)
	return nil
}

func (n *InMemoryNotifier) Notifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.notifications))
	copy(out, n.notifications)
	return out
}

// BreakerListener adapts a Notifier to the health tracker's listener
// contract. Sends are fire-and-forget with a short deadline so a slow SNS
// call never stalls failure bookkeeping.
type BreakerListener struct {
	notifier Notifier
}

func NewBreakerListener(n Notifier) *BreakerListener {
	return &BreakerListener{notifier: n}
}

func (l *BreakerListener) ProviderDown(providerID string, cooldown time.Duration) {
	go l.send(Notification{
		Type:     NotificationProviderDown,
		Provider: providerID,
		Message:  fmt.Sprintf("provider %s opened its circuit", providerID),
		Data:     map[string]any{"cooldown": cooldown.String()},
	})
}

func (l *BreakerListener) ProviderUp(providerID string) {
	go l.send(Notification{
		Type:     NotificationProviderUp,
		Provider: providerID,
		Message:  fmt.Sprintf("provider %s recovered", providerID),
	})
}

func (l *BreakerListener) send(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.notifier.Send(ctx, n); err != nil {
		slog.Error("failed to send breaker notification",
			"type", n.Type,
			"provider", n.Provider,
			"error", err,
		)
	}
}
