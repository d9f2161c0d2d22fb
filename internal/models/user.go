package models

import "time"

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleOperator UserRole = "operator"
)

type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
)

type User struct {
	Username  string     `json:"username"`
	Nickname  string     `json:"nickname"`
	Role      UserRole   `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (u *User) IsOperator() bool {
	return u.Role == UserRoleOperator
}

func (u *User) IsAvailable() bool {
	return u.Role == UserRoleOperator && u.Status == UserStatusOnline
}
