package cli

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/ir"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/stage"
)

// loadedBatch is a batch file decoded into a client.
type loadedBatch struct {
	Path   string
	Body   []byte
	Digest string
	Batch  *batch.Batch
	Client *clientevents.ClientEvents
}

// loadBatches reads, validates and decodes batch files concurrently, at most
// jobs at a time. A non-positive jobs uses one worker per CPU. The result is
// ordered by client id, then path. The first failure cancels the rest.
func loadBatches(ctx context.Context, paths []string, jobs int, obs observe.Observer) ([]loadedBatch, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	end := obs.Phase("load_batches", "batch_count", len(paths), "jobs", jobs)
	defer end()

	loaded := make([]loadedBatch, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lb, err := loadBatch(path, obs)
			if err != nil {
				return err
			}
			loaded[i] = lb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(loaded, func(a, b loadedBatch) int {
		return cmp.Or(cmp.Compare(a.Client.ID(), b.Client.ID()), cmp.Compare(a.Path, b.Path))
	})
	return loaded, nil
}

func loadBatch(path string, obs observe.Observer) (loadedBatch, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return loadedBatch{}, WrapExitError(ExitCommandError, "failed to read batch", err)
	}
	return decodeBatch(path, body, obs)
}

// decodeBatch builds a client from a batch document. path identifies the
// document in errors and logs.
func decodeBatch(path string, body []byte, obs observe.Observer) (loadedBatch, error) {
	b, err := batch.Parse(body)
	if err != nil {
		return loadedBatch{}, batchError(path, err)
	}
	digest, err := ir.BatchDigest(body)
	if err != nil {
		return loadedBatch{}, batchError(path, err)
	}
	c, err := b.Client(clientevents.WithObserver(obs))
	if err != nil {
		return loadedBatch{}, batchError(path, err)
	}

	obs.Log(slog.LevelDebug, "batch loaded",
		"path", path,
		"client_id", c.ID(),
		"event_count", c.EventCount(),
		"batch_digest", digest,
	)
	return loadedBatch{Path: path, Body: body, Digest: digest, Batch: b, Client: c}, nil
}

func batchError(path string, err error) *ExitError {
	return WrapExitError(ExitFailure, fmt.Sprintf("invalid batch %s", path), err)
}

// batchSet is a set of batches known to record the same stage of the same
// challenge.
type batchSet struct {
	Stage     stage.Stage
	Challenge clientevents.ChallengeInfo
	Batches   []loadedBatch
}

// newBatchSet checks that the batches belong together. The challenge of the
// first batch is used for the merge.
func newBatchSet(loaded []loadedBatch) (*batchSet, error) {
	if len(loaded) == 0 {
		return nil, NewExitError(ExitCommandError, "no batches given")
	}
	first := loaded[0].Client
	set := &batchSet{Stage: first.Stage(), Challenge: first.Challenge(), Batches: loaded}

	seen := make(map[int]string)
	for _, lb := range loaded {
		c := lb.Client
		if c.Stage() != set.Stage {
			return nil, NewExitError(ExitFailure,
				fmt.Sprintf("%s records %s, expected %s", lb.Path, c.Stage(), set.Stage))
		}
		if c.Challenge().ID != set.Challenge.ID {
			return nil, NewExitError(ExitFailure,
				fmt.Sprintf("%s belongs to challenge %s, expected %s", lb.Path, c.Challenge().ID, set.Challenge.ID))
		}
		if prev, ok := seen[c.ID()]; ok {
			return nil, NewExitError(ExitFailure,
				fmt.Sprintf("%s and %s both record client %d", prev, lb.Path, c.ID()))
		}
		seen[c.ID()] = lb.Path
	}
	return set, nil
}

// Clients returns the decoded clients in batch order.
func (s *batchSet) Clients() []*clientevents.ClientEvents {
	out := make([]*clientevents.ClientEvents, len(s.Batches))
	for i, lb := range s.Batches {
		out[i] = lb.Client
	}
	return out
}

// Digests returns the batch digests in batch order.
func (s *batchSet) Digests() []string {
	out := make([]string, len(s.Batches))
	for i, lb := range s.Batches {
		out[i] = lb.Digest
	}
	return out
}

// Size is the total size of the batch documents in bytes.
func (s *batchSet) Size() int {
	n := 0
	for _, lb := range s.Batches {
		n += len(lb.Body)
	}
	return n
}
