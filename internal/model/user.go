package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an employee acting on the workflow. Role drives both route permissions and
// which workflow transitions the user may fire.
type User struct {
	Base
	Username     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone        string         `gorm:"type:varchar(20)" json:"phone"`
	Password     string         `gorm:"type:varchar(255);not null" json:"-"`
	Role         string         `gorm:"type:varchar(50);not null;index" json:"role"`
	DepartmentID *uuid.UUID     `gorm:"type:uuid;index" json:"department_id"`
	Department   *Department    `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Department owns requests raised by its staff
type Department struct {
	Base
	Name string `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Code string `gorm:"type:varchar(30);uniqueIndex;not null" json:"code"`
}
