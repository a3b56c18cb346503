package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterRequestValidate(t *testing.T) {
	tests := []struct {
		name     string
		req      RegisterRequest
		wantKeys []string
	}{
		{
			name: "valid",
			req:  RegisterRequest{Email: "jan@example.edu", Password: "secret1", Name: "Jan"},
		},
		{
			name: "valid with role",
			req:  RegisterRequest{Email: "jan@example.edu", Password: "secret1", Name: "Jan", Role: "teacher"},
		},
		{
			name:     "missing everything",
			req:      RegisterRequest{},
			wantKeys: []string{"email", "password", "name"},
		},
		{
			name:     "short password",
			req:      RegisterRequest{Email: "jan@example.edu", Password: "12345", Name: "Jan"},
			wantKeys: []string{"password"},
		},
		{
			name:     "unknown role",
			req:      RegisterRequest{Email: "jan@example.edu", Password: "secret1", Name: "Jan", Role: "admin"},
			wantKeys: []string{"role"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.req.Validate()
			assert.Len(t, errs, len(tt.wantKeys))
			for _, key := range tt.wantKeys {
				assert.Contains(t, errs, key)
			}
		})
	}
}

func TestLoginRequestValidate(t *testing.T) {
	errs := (&LoginRequest{}).Validate()
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")

	errs = (&LoginRequest{Email: "jan@example.edu", Password: "secret1"}).Validate()
	assert.Empty(t, errs)
}

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		Title:       "Backend Engineer",
		Company:     "Acme",
		Location:    "Warsaw",
		Type:        "Full-time",
		Description: "Build services",
	}
	assert.Empty(t, valid.Validate())

	unknownType := valid
	unknownType.Type = "Gig"
	errs := unknownType.Validate()
	assert.Contains(t, errs, "type")

	empty := CreateJobRequest{}
	errs = empty.Validate()
	for _, key := range []string{"title", "company", "location", "type", "description"} {
		assert.Contains(t, errs, key)
	}
}

func TestCreateQueryRequestValidate(t *testing.T) {
	assert.Empty(t, (&CreateQueryRequest{Content: "Anyone taking CS101?"}).Validate())
	assert.Empty(t, (&CreateQueryRequest{MediaURL: "/uploads/x.png"}).Validate())
	assert.Contains(t, (&CreateQueryRequest{}).Validate(), "content")
}

func TestCommentRequestValidate(t *testing.T) {
	assert.Empty(t, (&CommentRequest{Text: "Yes"}).Validate())
	assert.Contains(t, (&CommentRequest{}).Validate(), "text")
}

func TestApplyRequestValidate(t *testing.T) {
	assert.Empty(t, (&ApplyRequest{Name: "Jan", Email: "jan@example.edu"}).Validate())

	errs := (&ApplyRequest{}).Validate()
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "email")
}
