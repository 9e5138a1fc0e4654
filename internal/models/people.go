package models

import "time"

// Admin marks a user as an administrator. The document identifier is the user id.
type Admin struct {
	ID      string    `json:"id" firestore:"-"`
	Email   string    `json:"email,omitempty" validate:"omitempty,email"`
	AddedAt time.Time `json:"addedAt"`
}

func (a *Admin) Kind() Kind      { return KindAdmin }
func (a *Admin) Validate() error { return validateRecord(KindAdmin, a) }

func (a *Admin) ToData() map[string]interface{} {
	m := map[string]interface{}{"addedAt": a.AddedAt}
	putString(m, "email", a.Email)
	return m
}

func adminFromData(id string, f fields) *Admin {
	return &Admin{ID: id, Email: f.getString("email"), AddedAt: f.getTime("addedAt")}
}

// User is the profile document at users/{uid}, keyed by the Firebase Auth UID.
type User struct {
	ID          string    `json:"id" firestore:"-"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (u *User) Kind() Kind      { return KindUser }
func (u *User) Validate() error { return validateRecord(KindUser, u) }

func (u *User) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"email":     u.Email,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
	putString(m, "displayName", u.DisplayName)
	putString(m, "photoURL", u.PhotoURL)
	return m
}

func userFromData(id string, f fields) *User {
	return &User{
		ID:          id,
		Email:       f.getString("email"),
		DisplayName: f.getString("displayName"),
		PhotoURL:    f.getString("photoURL"),
		CreatedAt:   f.getTime("createdAt"),
		UpdatedAt:   f.getTime("updatedAt"),
	}
}
