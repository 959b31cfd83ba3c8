package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы вещи. Физический флаг держим для выборок по каталогу,
// источником истины для доступности остаются записи обменов.
const (
	ItemStatusActive  = "active"
	ItemStatusTraded  = "traded"
	ItemStatusDeleted = "deleted"
)

// Category представляет фиксированную категорию вещи
type Category string

const (
	CategoryEveningDress Category = "evening_dress"
	CategoryGameConsole  Category = "game_console"
	CategoryGameDisc     Category = "game_disc"
	CategoryToy          Category = "toy"
	CategoryBook         Category = "book"
	CategoryKidsOther    Category = "kids_other"
)

// Categories — полный список категорий в порядке отображения
var Categories = []Category{
	CategoryEveningDress,
	CategoryGameConsole,
	CategoryGameDisc,
	CategoryToy,
	CategoryBook,
	CategoryKidsOther,
}

// IsValidCategory проверяет, что строка является известной категорией
func IsValidCategory(s string) bool {
	for _, c := range Categories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Item представляет вещь, выставленную на обмен
type Item struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    Category    `json:"category"`
	Status      string      `json:"status"`
	Images      []ItemImage `json:"images"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// Дополнительные поля для API
	Owner *User `json:"owner,omitempty"`
}

// ItemImage представляет изображение вещи
type ItemImage struct {
	ID         uuid.UUID `json:"id"`
	ItemID     uuid.UUID `json:"item_id"`
	URL        string    `json:"url"`
	PreviewURL string    `json:"preview_url,omitempty"`
	PublicID   string    `json:"public_id"`
	IsMain     bool      `json:"is_main"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}
