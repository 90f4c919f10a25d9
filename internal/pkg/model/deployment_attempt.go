package model

import "time"

// DeploymentAttempt tracks one pass through the deployment state machine.
// Terminal attempts are kept as an audit trail; at most one non-terminal
// attempt may exist per owner at any time.
type DeploymentAttempt struct {
	Id              string     `gorm:"primaryKey" json:"id"`
	OwnerId         string     `gorm:"index" json:"ownerId"`
	RelayHandle     string     `json:"relayHandle,omitempty"`
	State           string     `json:"state"`
	ContractAddress string     `json:"contractAddress,omitempty"`
	TransactionHash string     `json:"transactionHash,omitempty"`
	FailureCode     string     `json:"failureCode,omitempty"`
	FailureDetail   string     `json:"failureDetail,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

func (DeploymentAttempt) TableName() string {
	return "deployment_attempt"
}
