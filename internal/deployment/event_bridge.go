package deployment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"github.com/custodia-labs/safevault-backend/internal/pkg/pubsub"
	"github.com/custodia-labs/safevault-backend/internal/pkg/ws"
)

// DeploymentEvent mirrors an attempt's state for downstream consumers:
// published to pubsub for other services and pushed to the owner's websocket
// topic for the UI.
type DeploymentEvent struct {
	Id              string `json:"id"`
	AttemptId       string `json:"attemptId"`
	OwnerId         string `json:"ownerId"`
	State           string `json:"state"`
	ContractAddress string `json:"contractAddress,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	FailureCode     string `json:"failureCode,omitempty"`
}

func (e DeploymentEvent) GetEventTopicName() string {
	return "custody.deployment.events"
}

type eventBridge struct {
	notificationHub *ws.WebSocketNotificationHub
}

func newEventBridge() *eventBridge {
	return &eventBridge{notificationHub: ws.NewNotificationHub()}
}

func (b *eventBridge) attemptChanged(attempt *model.DeploymentAttempt) {
	event := DeploymentEvent{
		Id:              uuid.New().String(),
		AttemptId:       attempt.Id,
		OwnerId:         attempt.OwnerId,
		State:           attempt.State,
		ContractAddress: attempt.ContractAddress,
		TransactionHash: attempt.TransactionHash,
		FailureCode:     attempt.FailureCode,
	}

	pubsub.Publish(event)
	b.notificationHub.Publish(fmt.Sprintf("deployments/%s", attempt.OwnerId), event)
}
