package model

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type CreatePostRequest struct {
	Content string `json:"content"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type UpdatePushTokenRequest struct {
	PushToken string `json:"pushToken"`
}
