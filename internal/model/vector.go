package model

import (
	"database/sql/driver"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Vector is an embedding column. On postgres it maps to pgvector's vector(N),
// where N comes from the field's `dimensions` tag; other dialects keep the
// bracketed text form so rows stay portable.
type Vector struct {
	pgvector.Vector
}

func NewVector(values []float32) *Vector {
	return &Vector{Vector: pgvector.NewVector(values)}
}

func (v Vector) Value() (driver.Value, error) {
	return v.Vector.Value()
}

func (v *Vector) Scan(src interface{}) error {
	return v.Vector.Scan(src)
}

func (Vector) GormDataType() string {
	return "vector"
}

func (Vector) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		if dims, ok := field.TagSettings["DIMENSIONS"]; ok && dims != "" {
			return fmt.Sprintf("vector(%s)", dims)
		}
		return "vector"
	case "mysql":
		return "longtext"
	default:
		return "text"
	}
}
