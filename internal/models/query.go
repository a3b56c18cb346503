package models

import "time"

// QueryPost is one entry in the community queries feed.
type QueryPost struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Author    string    `json:"author" bson:"author"`
	Role      string    `json:"role,omitempty" bson:"role,omitempty"`
	Content   string    `json:"content" bson:"content"`
	MediaURL  string    `json:"media_url,omitempty" bson:"media_url,omitempty"`
	Likes     int64     `json:"likes" bson:"likes"`
	LikedBy   []string  `json:"-" bson:"liked_by,omitempty"`
	Comments  []Comment `json:"comments" bson:"comments"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Comment struct {
	ID        string    `json:"id" bson:"id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Author    string    `json:"author" bson:"author"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type CreateQueryRequest struct {
	Content  string `json:"content"`
	MediaURL string `json:"media_url"`
}

func (r *CreateQueryRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Content == "" && r.MediaURL == "" {
		errors["content"] = "Post needs content or media"
	}

	return errors
}

type CommentRequest struct {
	Text string `json:"text"`
}

func (r *CommentRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Text == "" {
		errors["text"] = "Comment text is required"
	}

	return errors
}
