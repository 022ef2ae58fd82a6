package model

// User is the directory view of an account owner, used for notifications.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
