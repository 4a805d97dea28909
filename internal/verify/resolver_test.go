package verify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/models"
)

type memCorpus struct {
	identities []EnrolledIdentity
}

func (c *memCorpus) EnrolledIdentities(ctx context.Context) ([]EnrolledIdentity, error) {
	return c.identities, nil
}

func twoUserCorpus() (*memCorpus, models.User, models.User) {
	alice := models.User{ID: uuid.New(), Email: "alice@example.com", Name: "Alice"}
	bob := models.User{ID: uuid.New(), Email: "bob@example.com", Name: "Bob"}
	corpus := &memCorpus{identities: []EnrolledIdentity{
		{User: alice, References: [][]float32{{1, 0, 0}}},
		{User: bob, References: [][]float32{{0, 1, 0}, {0, 0.8, 0.6}}},
	}}
	return corpus, alice, bob
}

func TestLinearResolverMatch(t *testing.T) {
	corpus, _, bob := twoUserCorpus()
	r := NewLinearResolver(corpus)

	score, user, err := r.Resolve(context.Background(), []float32{0, 1, 0}, 0.35)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, bob.ID, user.ID)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestLinearResolverBelowThreshold(t *testing.T) {
	corpus, _, _ := twoUserCorpus()
	r := NewLinearResolver(corpus)

	// Orthogonal probe: best score 0, still reported for telemetry.
	score, user, err := r.Resolve(context.Background(), []float32{0, 0, 1}, 0.35)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.InDelta(t, 0.6, score, 1e-6) // bob's second reference has a 0.6 z component
}

func TestLinearResolverEmptyCorpus(t *testing.T) {
	r := NewLinearResolver(&memCorpus{})

	score, user, err := r.Resolve(context.Background(), []float32{1, 0, 0}, 0.35)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, NoScore, score)
}

func TestIndexResolverMatchesLinear(t *testing.T) {
	corpus, alice, bob := twoUserCorpus()

	idx := NewIndexResolver(corpus)
	require.NoError(t, idx.Rebuild(context.Background()))

	for _, tc := range []struct {
		probe []float32
		want  uuid.UUID
	}{
		{[]float32{1, 0, 0}, alice.ID},
		{[]float32{0, 1, 0}, bob.ID},
	} {
		score, user, err := idx.Resolve(context.Background(), tc.probe, 0.35)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, tc.want, user.ID)
		assert.InDelta(t, 1.0, score, 1e-6)
	}
}

func TestIndexResolverBeforeRebuild(t *testing.T) {
	idx := NewIndexResolver(&memCorpus{})

	score, user, err := idx.Resolve(context.Background(), []float32{1, 0, 0}, 0.35)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, NoScore, score)
}
