// internal/storage/models/transaction.go
package models

import "time"

// Transaction is one history entry of a wallet.
type Transaction struct {
	BaseModel
	WalletAddress string    `gorm:"uniqueIndex:idx_wallet_signature;not null;type:varchar(44)"`
	Signature     string    `gorm:"uniqueIndex:idx_wallet_signature;not null;type:varchar(88)"`
	Title         string    `gorm:"type:varchar(100)"`
	Description   string    `gorm:"type:text"`
	Status        string    `gorm:"not null;type:varchar(20)"`
	BlockSlot     uint64    `gorm:"default:0"`
	SentAt        time.Time `gorm:"index;not null"`
}

// TableName keeps the table apart from other transaction tables of the database.
func (Transaction) TableName() string {
	return "tx_history"
}
