// Package jobs implements the alumni job board: postings, search with
// pagination, and applications.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/almahub/backend/internal/models"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrUnauthorized   = errors.New("unauthorized to modify this job")
	ErrAlreadyApplied = errors.New("already applied to this job")
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	listCacheTTL    = 30 * time.Second
)

type Service struct {
	jobsColl         *mongo.Collection
	applicationsColl *mongo.Collection
	listCache        *gocache.Cache
}

func NewService(ctx context.Context, db *mongo.Database) *Service {
	jobs := db.Collection("jobs")
	applications := db.Collection("applications")

	// Best-effort indexes.
	_, _ = jobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	_, _ = applications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "job_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &Service{
		jobsColl:         jobs,
		applicationsColl: applications,
		listCache:        gocache.New(listCacheTTL, time.Minute),
	}
}

func (s *Service) Create(ctx context.Context, userID string, req *models.CreateJobRequest) (*models.Job, error) {
	job := &models.Job{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       req.Title,
		Company:     req.Company,
		Location:    req.Location,
		Type:        req.Type,
		Salary:      req.Salary,
		Experience:  req.Experience,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}

	if _, err := s.jobsColl.InsertOne(ctx, job); err != nil {
		return nil, err
	}
	s.listCache.Flush()
	return job, nil
}

// listQuery builds the Mongo filter for a listing page. Search terms are
// matched as literal substrings, so metacharacters in user input never reach
// the regex engine.
func listQuery(filter models.JobFilter) bson.M {
	query := bson.M{}
	if filter.Query != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
		query["$or"] = []bson.M{
			{"title": rx},
			{"company": rx},
		}
	}
	if filter.Location != "" {
		query["location"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Location), Options: "i"}
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	return query
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.jobsColl.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns one page of postings matching the filter, newest first. Pages
// are cached briefly; any write flushes the cache.
func (s *Service) List(ctx context.Context, filter models.JobFilter) (*models.JobPage, error) {
	filter = normalize(filter)

	cacheKey := fmt.Sprintf("q=%s|loc=%s|type=%s|p=%d|l=%d",
		filter.Query, filter.Location, filter.Type, filter.Page, filter.Limit)
	if cached, ok := s.listCache.Get(cacheKey); ok {
		return cached.(*models.JobPage), nil
	}

	query := listQuery(filter)

	total, err := s.jobsColl.CountDocuments(ctx, query)
	if err != nil {
		return nil, err
	}

	skip := int64((filter.Page - 1) * filter.Limit)
	cur, err := s.jobsColl.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(filter.Limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	jobs := make([]models.Job, 0, filter.Limit)
	for cur.Next(ctx) {
		var job models.Job
		if err := cur.Decode(&job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	page := &models.JobPage{
		Jobs:       jobs,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}
	s.listCache.Set(cacheKey, page, gocache.DefaultExpiration)
	return page, nil
}

func (s *Service) Delete(ctx context.Context, userID, jobID string) error {
	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return ErrUnauthorized
	}

	if _, err := s.jobsColl.DeleteOne(ctx, bson.M{"_id": jobID}); err != nil {
		return err
	}
	_, _ = s.applicationsColl.DeleteMany(ctx, bson.M{"job_id": jobID})
	s.listCache.Flush()
	return nil
}

func (s *Service) Apply(ctx context.Context, userID, jobID string, req *models.ApplyRequest) (*models.JobApplication, error) {
	if _, err := s.GetByID(ctx, jobID); err != nil {
		return nil, err
	}

	app := &models.JobApplication{
		ID:        uuid.New().String(),
		JobID:     jobID,
		UserID:    userID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
		CVLink:    req.CVLink,
		CreatedAt: time.Now(),
	}

	if _, err := s.applicationsColl.InsertOne(ctx, app); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyApplied
		}
		return nil, err
	}
	return app, nil
}

// ListApplications returns the applications for a posting, visible only to
// its owner.
func (s *Service) ListApplications(ctx context.Context, userID, jobID string) ([]models.JobApplication, error) {
	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrUnauthorized
	}

	cur, err := s.applicationsColl.Find(ctx, bson.M{"job_id": jobID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	apps := make([]models.JobApplication, 0)
	for cur.Next(ctx) {
		var app models.JobApplication
		if err := cur.Decode(&app); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, cur.Err()
}

func normalize(f models.JobFilter) models.JobFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f
}
