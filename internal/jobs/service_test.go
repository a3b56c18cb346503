package jobs

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/almahub/backend/internal/models"
)

func TestListQuerySearchesTermsAsLiterals(t *testing.T) {
	q := listQuery(models.JobFilter{Query: "C++ (remote)", Location: "Pune?"})

	or, ok := q["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, or, 2)

	title, ok := or[0]["title"].(primitive.Regex)
	require.True(t, ok)
	assert.Equal(t, regexp.QuoteMeta("C++ (remote)"), title.Pattern)
	assert.Equal(t, "i", title.Options)

	company, ok := or[1]["company"].(primitive.Regex)
	require.True(t, ok)
	assert.Equal(t, title.Pattern, company.Pattern)

	loc, ok := q["location"].(primitive.Regex)
	require.True(t, ok)
	assert.Equal(t, regexp.QuoteMeta("Pune?"), loc.Pattern)

	// The pattern must still compile and match the term as a substring.
	rx, err := regexp.Compile("(?i)" + title.Pattern)
	require.NoError(t, err)
	assert.True(t, rx.MatchString("Senior C++ (remote) Engineer"))
	assert.False(t, rx.MatchString("Senior Go Engineer"))
}

func TestListQueryOmitsEmptyFilters(t *testing.T) {
	assert.Empty(t, listQuery(models.JobFilter{}))

	q := listQuery(models.JobFilter{Type: "Full-time"})
	assert.Equal(t, bson.M{"type": "Full-time"}, q)
}
