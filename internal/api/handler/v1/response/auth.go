package response

import "github.com/vietanh2810/jobshadow-api/internal/domain"

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}
