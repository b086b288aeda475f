package model

import (
	"math"
	"time"
)

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Post struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	UserID        string    `json:"userId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	User          Author    `json:"user"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	IsLiked       bool      `json:"isLiked"`
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	PostID    string    `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
	User      Author    `json:"user"`
}

type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

type FeedQuery struct {
	ViewerID string
	Username string
	Page     int
	Limit    int
}

type PageQuery struct {
	Page  int
	Limit int
}

// MaxPage keeps Offset inside int32 at the largest limit.
const MaxPage = math.MaxInt32 / 50

// Normalize clamps page to 1..MaxPage and limit to 1..50, defaulting to 10.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 50 {
		q.Limit = 50
	}
	return q
}

func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// NewPagination computes totalPages for a normalized query.
func NewPagination(q PageQuery, total int) *Pagination {
	totalPages := 0
	if total > 0 && q.Limit > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}
	return &Pagination{Page: q.Page, Limit: q.Limit, Total: total, TotalPages: totalPages}
}
