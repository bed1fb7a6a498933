package migrations

import (
	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/pkg/migration"
	"github.com/shashiranjanraj/foodie/pkg/queue"
)

func init() {
	migration.Register(
		migration.Table("20260101000000_create_users_table", &models.User{}),
		migration.Table("20260101000001_create_items_table", &models.Item{}),
		migration.Table("20260101000002_create_cart_entries_table", &models.CartEntry{}),
		migration.Table("20260101000003_create_orders_tables", &models.Order{}, &models.OrderLine{}),
		migration.Table("20260101000004_create_failed_jobs_table", &queue.FailedJobRecord{}),
	)
}
