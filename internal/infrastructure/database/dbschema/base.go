package dbschema

import "time"

// BaseModel is the embedded primary key and timestamp set shared by every
// schema entity.
type BaseModel struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
