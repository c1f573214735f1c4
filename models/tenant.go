package models

import "strconv"

// TenantID идентификатор клуба (арендатора). Отдельный тип, чтобы его нельзя было
// перепутать с любым другим int в сигнатурах репозиториев.
type TenantID int

func (t TenantID) String() string {
	return strconv.Itoa(int(t))
}

// Valid reports whether the id can scope a query.
func (t TenantID) Valid() bool {
	return t > 0
}

type Tenant struct {
	ID       TenantID `json:"id"`
	Name     string   `json:"name"`
	IsActive bool     `json:"is_active"`
}
