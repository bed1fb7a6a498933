package seeders

import (
	"context"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	Register("menu", seedMenu)
}

type dish struct {
	name, category, description string
	price                       string
	stock                       int
	rating                      float64
}

var sampleMenu = []dish{
	{"Paneer Butter Masala", "Curry", "Cottage cheese in a buttery tomato gravy", "249.00", 40, 4.6},
	{"Chicken Biryani", "Rice", "Dum-cooked basmati with spiced chicken", "299.00", 35, 4.8},
	{"Masala Dosa", "South Indian", "Crisp rice crepe with potato filling", "149.00", 50, 4.5},
	{"Veg Hakka Noodles", "Chinese", "Wok-tossed noodles with vegetables", "179.00", 30, 4.2},
	{"Gulab Jamun", "Dessert", "Two milk dumplings in rose syrup", "89.00", 60, 4.7},
	{"Mango Lassi", "Drinks", "Sweet yoghurt with Alphonso mango", "99.00", 45, 4.4},
}

// seedMenu inserts the sample dishes that are not on the menu yet. Existing
// items, matched by name, are left untouched.
func seedMenu(ctx context.Context, db *gorm.DB) error {
	for _, d := range sampleMenu {
		price := decimal.RequireFromString(d.price)
		item := models.Item{
			Name:        d.name,
			Description: d.description,
			Category:    d.category,
			Price:       price,
			Stock:       d.stock,
			Rating:      d.rating,
			Total:       price,
		}
		err := db.WithContext(ctx).
			Where(models.Item{Name: d.name}).
			Attrs(item).
			FirstOrCreate(&models.Item{}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
