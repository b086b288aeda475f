package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypePostCreated    Type = "post.created"
	TypePostLiked      Type = "post.liked"
	TypeCommentCreated Type = "comment.created"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actorId,omitempty"` // Who triggered the event
}

// PostCreated is the payload of TypePostCreated.
type PostCreated struct {
	PostID   string `json:"postId"`
	AuthorID string `json:"authorId"`
	Content  string `json:"content"`
}

// PostLiked is the payload of TypePostLiked.
type PostLiked struct {
	PostID        string `json:"postId"`
	PostAuthorID  string `json:"postAuthorId"`
	LikerID       string `json:"likerId"`
	LikerUsername string `json:"likerUsername"`
	LikesCount    int    `json:"likesCount"`
}

// CommentCreated is the payload of TypeCommentCreated.
type CommentCreated struct {
	PostID            string `json:"postId"`
	PostAuthorID      string `json:"postAuthorId"`
	CommentID         string `json:"commentId"`
	CommenterID       string `json:"commenterId"`
	CommenterUsername string `json:"commenterUsername"`
}

func New(t Type, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
