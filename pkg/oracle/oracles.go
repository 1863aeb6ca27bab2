package oracle

import (
	"context"
	"errors"
	"sync"

	"github.com/crosspoll/harmonizer/pkg/constants"
	pkgerrors "github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/logging"
)

// Oracles is a thread-safe, ordered container for naming oracles. One
// oracle is designated primary: its proposals win tie-breaks during
// mapping selection.
type Oracles struct {
	mu      sync.RWMutex
	order   []ID
	oracles map[ID]Oracle
	primary ID
}

// NewOracles creates an Oracles container. The first oracle added
// becomes the primary unless SetPrimary designates another.
func NewOracles(oracles ...Oracle) *Oracles {
	o := &Oracles{
		oracles: make(map[ID]Oracle),
	}
	for _, oc := range oracles {
		o.Add(oc)
	}
	return o
}

// Add registers an oracle, preserving insertion order. Re-adding an ID
// replaces the oracle in place.
func (o *Oracles) Add(oc Oracle) {
	if oc == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	id := oc.ID()
	if _, exists := o.oracles[id]; !exists {
		o.order = append(o.order, id)
	}
	o.oracles[id] = oc
	if o.primary == "" {
		o.primary = id
	}
}

// Get returns an oracle by ID.
func (o *Oracles) Get(id ID) (Oracle, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	oc, ok := o.oracles[id]
	return oc, ok
}

// Len returns the number of registered oracles.
func (o *Oracles) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.oracles)
}

// IDs returns the oracle IDs in registration order.
func (o *Oracles) IDs() []ID {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]ID, len(o.order))
	copy(ids, o.order)
	return ids
}

// SetPrimary designates the primary oracle. Unknown IDs are refused.
func (o *Oracles) SetPrimary(id ID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.oracles[id]; !ok {
		return pkgerrors.NewNotFoundError("oracle", string(id))
	}
	o.primary = id
	return nil
}

// Primary returns the designated primary oracle's ID.
func (o *Oracles) Primary() ID {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.primary
}

// ProposeAll queries every registered oracle concurrently and waits for
// all of them to return or fail before returning; this is the selection
// barrier. Proposals from failed oracles are simply absent from the
// result; their errors are joined and returned alongside the proposals
// so the caller can decide whether the degraded set is still usable.
// Malformed proposals are dropped, never passed through.
func (o *Oracles) ProposeAll(ctx context.Context, req Request) ([]*Proposal, error) {
	o.mu.RLock()
	ids := make([]ID, len(o.order))
	copy(ids, o.order)
	oracles := make(map[ID]Oracle, len(o.oracles))
	for id, oc := range o.oracles {
		oracles[id] = oc
	}
	o.mu.RUnlock()

	logger := logging.FromContext(ctx)

	var wg sync.WaitGroup
	var mu sync.Mutex
	proposals := make(map[ID]*Proposal, len(ids))
	var errs []error

	for _, id := range ids {
		wg.Add(1)
		go func(id ID, oc Oracle) {
			defer wg.Done()

			logger.Debug().
				Str("oracle", string(id)).
				Int("keys", len(req.Keys)).
				Str("kind", req.Kind).
				Msg("Requesting mapping proposal")

			proposal, err := propose(ctx, oc, req)
			if err == nil {
				err = proposal.Validate(req)
			}
			if err != nil {
				logger.Warn().
					Err(err).
					Str("oracle", string(id)).
					Msg("Oracle proposal failed")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}

			mu.Lock()
			proposals[id] = proposal
			mu.Unlock()
		}(id, oracles[id])
	}

	wg.Wait()

	// Preserve registration order so selection is deterministic.
	ordered := make([]*Proposal, 0, len(proposals))
	for _, id := range ids {
		if p, ok := proposals[id]; ok {
			ordered = append(ordered, p)
		}
	}

	if len(errs) > 0 {
		return ordered, errors.Join(errs...)
	}
	return ordered, nil
}

// propose runs one oracle over a request, splitting the key set into
// chunks of at most constants.MaxKeysPerRequest and merging the partial
// proposals. Each chunk call carries its own timeout; any chunk failure
// fails the whole oracle, since a proposal with silently missing chunks
// would skew selection.
func propose(ctx context.Context, oc Oracle, req Request) (*Proposal, error) {
	merged := NewProposal(oc.ID(), req.Kind)

	keys := req.Keys
	for len(keys) > 0 {
		n := len(keys)
		if n > constants.MaxKeysPerRequest {
			n = constants.MaxKeysPerRequest
		}
		chunk := req
		chunk.Keys = keys[:n]
		keys = keys[n:]

		cctx, cancel := context.WithTimeout(ctx, constants.OracleProposeTimeout)
		p, err := oc.Propose(cctx, chunk)
		cancel()
		if err != nil {
			return nil, err
		}
		for raw, canonical := range p.Mappings {
			merged.Mappings[raw] = canonical
		}
	}
	return merged, nil
}
