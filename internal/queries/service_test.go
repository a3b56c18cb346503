package queries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestToggleOpsAreConditionalOnMembership(t *testing.T) {
	likeFilter, likeUpdate := likeOp("post-1", "uid-1")
	unlikeFilter, unlikeUpdate := unlikeOp("post-1", "uid-1")

	// Each branch matches only the state it transitions out of, so two
	// concurrent toggles by the same user cannot both increment.
	assert.Equal(t, bson.M{"_id": "post-1", "liked_by": bson.M{"$ne": "uid-1"}}, likeFilter)
	assert.Equal(t, bson.M{"_id": "post-1", "liked_by": "uid-1"}, unlikeFilter)

	require.Contains(t, likeUpdate, "$inc")
	assert.Equal(t, bson.M{"likes": 1}, likeUpdate["$inc"])
	assert.Equal(t, bson.M{"liked_by": "uid-1"}, likeUpdate["$addToSet"])

	require.Contains(t, unlikeUpdate, "$inc")
	assert.Equal(t, bson.M{"likes": -1}, unlikeUpdate["$inc"])
	assert.Equal(t, bson.M{"liked_by": "uid-1"}, unlikeUpdate["$pull"])
}
