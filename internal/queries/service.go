// Package queries implements the community feed: posts with optional media,
// like toggling and comments.
package queries

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/almahub/backend/internal/models"
)

var ErrPostNotFound = errors.New("post not found")

type Service struct {
	postsColl *mongo.Collection
}

func NewService(ctx context.Context, db *mongo.Database) *Service {
	posts := db.Collection("posts")

	// Best-effort indexes.
	_, _ = posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})

	return &Service{postsColl: posts}
}

func (s *Service) Create(ctx context.Context, userID, author, role string, req *models.CreateQueryRequest) (*models.QueryPost, error) {
	post := &models.QueryPost{
		ID:        uuid.New().String(),
		UserID:    userID,
		Author:    author,
		Role:      role,
		Content:   req.Content,
		MediaURL:  req.MediaURL,
		Comments:  []models.Comment{},
		CreatedAt: time.Now(),
	}

	if _, err := s.postsColl.InsertOne(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// List returns the feed newest first.
func (s *Service) List(ctx context.Context, limit int) ([]models.QueryPost, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}

	cur, err := s.postsColl.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	posts := make([]models.QueryPost, 0, limit)
	for cur.Next(ctx) {
		var post models.QueryPost
		if err := cur.Decode(&post); err != nil {
			return nil, err
		}
		if post.Comments == nil {
			post.Comments = []models.Comment{}
		}
		posts = append(posts, post)
	}
	return posts, cur.Err()
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.QueryPost, error) {
	var post models.QueryPost
	err := s.postsColl.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// likeOp matches only when userID has not liked the post yet; unlikeOp only
// when it has. Membership is part of the filter, so each document update is
// conditional on the state it changes and concurrent toggles cannot
// double-count.
func likeOp(postID, userID string) (bson.M, bson.M) {
	filter := bson.M{"_id": postID, "liked_by": bson.M{"$ne": userID}}
	update := bson.M{
		"$inc":      bson.M{"likes": 1},
		"$addToSet": bson.M{"liked_by": userID},
	}
	return filter, update
}

func unlikeOp(postID, userID string) (bson.M, bson.M) {
	filter := bson.M{"_id": postID, "liked_by": userID}
	update := bson.M{
		"$inc":  bson.M{"likes": -1},
		"$pull": bson.M{"liked_by": userID},
	}
	return filter, update
}

// ToggleLike likes the post for userID, or unlikes it when already liked.
// Returns the post after the toggle.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (*models.QueryPost, error) {
	filter, update := likeOp(postID, userID)
	res, err := s.postsColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		// Already liked, so this is an unlike. When neither branch matches
		// the post is missing or a concurrent toggle won the race; GetByID
		// below reports the current state either way.
		filter, update = unlikeOp(postID, userID)
		if _, err := s.postsColl.UpdateOne(ctx, filter, update); err != nil {
			return nil, err
		}
	}
	return s.GetByID(ctx, postID)
}

func (s *Service) AddComment(ctx context.Context, userID, author, postID string, req *models.CommentRequest) (*models.QueryPost, error) {
	comment := models.Comment{
		ID:        uuid.New().String(),
		UserID:    userID,
		Author:    author,
		Text:      req.Text,
		CreatedAt: time.Now(),
	}

	res, err := s.postsColl.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{
		"$push": bson.M{"comments": comment},
	})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrPostNotFound
	}
	return s.GetByID(ctx, postID)
}
