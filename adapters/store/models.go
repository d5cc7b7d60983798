package store

import (
	"time"

	"github.com/turrn3r/walletlink/core"
)

// nonceRow maps to the nonces table, one row per user_key.
// Timestamps are unix milliseconds so comparisons behave the same on every dialect.
type nonceRow struct {
	UserKey   string `gorm:"column:user_key;type:TEXT;primaryKey"`
	Nonce     string `gorm:"column:nonce;type:TEXT;not null"`
	IssuedAt  int64  `gorm:"column:issued_at;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null;index"`
	Consumed  bool   `gorm:"column:consumed;not null"`
}

// TableName implements the GORM tabler interface.
func (nonceRow) TableName() string { return "nonces" }

func (r nonceRow) toChallenge() *core.NonceChallenge {
	return &core.NonceChallenge{
		UserKey:   r.UserKey,
		Nonce:     r.Nonce,
		IssuedAt:  time.UnixMilli(r.IssuedAt),
		ExpiresAt: time.UnixMilli(r.ExpiresAt),
		Consumed:  r.Consumed,
	}
}

// linkRow maps to the links table
type linkRow struct {
	UserKey  string `gorm:"column:user_key;type:TEXT;primaryKey"`
	Address  string `gorm:"column:address;type:TEXT;not null"`
	LinkedAt int64  `gorm:"column:linked_at;not null"`
}

// TableName implements the GORM tabler interface.
func (linkRow) TableName() string { return "links" }

func (r linkRow) toLink() *core.WalletLink {
	return &core.WalletLink{
		UserKey:  r.UserKey,
		Address:  r.Address,
		LinkedAt: time.UnixMilli(r.LinkedAt),
	}
}
