package models

import "time"

// Job is a board posting, stored in Mongo and keyed by its own id.
type Job struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"user_id" bson:"user_id"`
	Title       string    `json:"title" bson:"title"`
	Company     string    `json:"company" bson:"company"`
	Location    string    `json:"location" bson:"location"`
	Type        string    `json:"type" bson:"type"`
	Salary      string    `json:"salary,omitempty" bson:"salary,omitempty"`
	Experience  string    `json:"experience,omitempty" bson:"experience,omitempty"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// JobApplication is one candidate's application to a posting.
type JobApplication struct {
	ID        string    `json:"id" bson:"_id"`
	JobID     string    `json:"job_id" bson:"job_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Message   string    `json:"message,omitempty" bson:"message,omitempty"`
	CVLink    string    `json:"cv_url,omitempty" bson:"cv_url,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type CreateJobRequest struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	Salary      string `json:"salary"`
	Experience  string `json:"experience"`
	Description string `json:"description"`
}

var jobTypes = map[string]bool{
	"Full-time": true, "Part-time": true, "Internship": true, "Contract": true, "Remote": true,
}

func (r *CreateJobRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Title == "" {
		errors["title"] = "Title is required"
	}
	if r.Company == "" {
		errors["company"] = "Company is required"
	}
	if r.Location == "" {
		errors["location"] = "Location is required"
	}
	if r.Type == "" {
		errors["type"] = "Job type is required"
	} else if !jobTypes[r.Type] {
		errors["type"] = "Unknown job type"
	}
	if r.Description == "" {
		errors["description"] = "Description is required"
	}

	return errors
}

type ApplyRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	CVLink  string `json:"cv_url"`
}

func (r *ApplyRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	}

	return errors
}

// JobFilter narrows and pages a board listing.
type JobFilter struct {
	Query    string
	Location string
	Type     string
	Page     int
	Limit    int
}

// JobPage is one page of listings plus the total match count.
type JobPage struct {
	Jobs       []Job `json:"jobs"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}
