package model

import "time"

// CustodyRecord is the durable mapping from an external owner to the custodial
// wallet held on its behalf and, once deployed, the owned contract address.
// OwnerId and CustodialAddress are unique; CustodialAddress never changes and
// ContractAddress is written exactly once.
type CustodyRecord struct {
	Id                uint64    `gorm:"primaryKey" json:"id"`
	OwnerId           string    `gorm:"uniqueIndex" json:"ownerId"`
	CustodialWalletId string    `json:"custodialWalletId"`
	CustodialAddress  string    `gorm:"uniqueIndex" json:"custodialAddress"`
	ChainType         string    `json:"chainType"`
	ContractAddress   *string   `json:"contractAddress,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (CustodyRecord) TableName() string {
	return "custody_record"
}
