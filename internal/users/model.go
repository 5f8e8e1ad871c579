package users

import "time"

// User パスワードハッシュは外に出さない。認証系は platform/auth が持つ。
type User struct {
	ID        string
	FullName  string
	Email     string
	Role      string
	CreatedAt time.Time
}

type UserResponse struct {
	ID        string `json:"user_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func toResponse(m *User) UserResponse {
	return UserResponse{
		ID:        m.ID,
		FullName:  m.FullName,
		Email:     m.Email,
		Role:      m.Role,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toResponses(list []User) []UserResponse {
	out := make([]UserResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	return out
}
