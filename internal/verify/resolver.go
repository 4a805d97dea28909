package verify

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/coder/hnsw"

	"github.com/your-org/presence/internal/models"
)

// EnrolledIdentity pairs a user with their reference embeddings for
// anonymous resolution.
type EnrolledIdentity struct {
	User       models.User
	References [][]float32
}

// IdentityCorpus supplies every identity that has at least one reference
// embedding.
type IdentityCorpus interface {
	EnrolledIdentities(ctx context.Context) ([]EnrolledIdentity, error)
}

// Resolver finds the best-matching identity for a probe embedding. The best
// score found is always returned, even when it falls below the threshold and
// no identity is granted, so callers can report closest-attempt telemetry.
type Resolver interface {
	Resolve(ctx context.Context, probe []float32, threshold float64) (float64, *models.User, error)
}

// LinearResolver scans the whole corpus on every call. O(identities ×
// references); fine at expected corpus sizes.
type LinearResolver struct {
	corpus IdentityCorpus
}

func NewLinearResolver(corpus IdentityCorpus) *LinearResolver {
	return &LinearResolver{corpus: corpus}
}

func (r *LinearResolver) Resolve(ctx context.Context, probe []float32, threshold float64) (float64, *models.User, error) {
	identities, err := r.corpus.EnrolledIdentities(ctx)
	if err != nil {
		return NoScore, nil, fmt.Errorf("load identity corpus: %w", err)
	}

	best := NoScore
	var bestUser *models.User
	for i := range identities {
		if len(identities[i].References) == 0 {
			continue
		}
		if s := Score(probe, identities[i].References); s > best {
			best = s
			bestUser = &identities[i].User
		}
	}

	if best >= threshold {
		return best, bestUser, nil
	}
	return best, nil, nil
}

// IndexResolver answers the same contract from an in-memory HNSW graph,
// trading exactness for sub-linear lookups on large corpora. Rebuild
// repopulates the graph from the corpus; resolution between rebuilds sees a
// stale but consistent snapshot.
type IndexResolver struct {
	corpus IdentityCorpus

	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	users map[string]models.User
}

func NewIndexResolver(corpus IdentityCorpus) *IndexResolver {
	return &IndexResolver{corpus: corpus}
}

// Rebuild reloads the corpus and reconstructs the graph. One graph node per
// reference embedding, keyed "userID#n".
func (r *IndexResolver) Rebuild(ctx context.Context) error {
	identities, err := r.corpus.EnrolledIdentities(ctx)
	if err != nil {
		return fmt.Errorf("load identity corpus: %w", err)
	}

	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	users := make(map[string]models.User)

	for i := range identities {
		id := identities[i].User.ID.String()
		for n, ref := range identities[i].References {
			if len(ref) == 0 {
				continue
			}
			key := id + "#" + strconv.Itoa(n)
			g.Add(hnsw.MakeNode(key, ref))
			users[key] = identities[i].User
		}
	}

	r.mu.Lock()
	r.graph = g
	r.users = users
	r.mu.Unlock()
	return nil
}

func (r *IndexResolver) Resolve(ctx context.Context, probe []float32, threshold float64) (float64, *models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.graph == nil || r.graph.Len() == 0 {
		return NoScore, nil, nil
	}

	neighbors := r.graph.Search(probe, 1)
	if len(neighbors) == 0 {
		return NoScore, nil, nil
	}

	best := dot(probe, neighbors[0].Value)
	u, ok := r.users[neighbors[0].Key]
	if !ok || best < threshold {
		return best, nil, nil
	}
	return best, &u, nil
}
