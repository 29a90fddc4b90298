// Package dbtest opens throwaway sqlite databases carrying the mirror schema.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/db/models"
)

// PartialIndexes are the partial unique indexes the goose migrations create on
// postgres; AutoMigrate cannot express them.
var PartialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_gateway_customers_active_user ON gateway_customers (user_id) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_gateway_subscriptions_active_user_plan ON gateway_subscriptions (user_id, plan_id) WHERE status = 3 AND is_active`,
}

// Open returns an isolated in-memory database with every mirror table migrated.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.Customer{},
		&models.Card{},
		&models.Charge{},
		&models.Plan{},
		&models.Subscription{},
	); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	for _, stmt := range PartialIndexes {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create index: %v", err)
		}
	}
	return conn
}
