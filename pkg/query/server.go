package query

import (
	"time"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/metrics"
	"github.com/meridianchain/drive/pkg/queryerr"
	"github.com/meridianchain/drive/pkg/tree"
)

// Metadata accompanies every response: the last-committed
// block this query was served against, independent of the result itself.
type Metadata struct {
	LastCommittedHeight uint64
	LastCommittedCoreHeight uint32
	LastCommittedTimeMs uint64
	EpochIndex          uint64
	ChainID             string
	ProtocolVersion     uint32
	QuorumHash          []byte
}

// Server runs path-queries built by this package's functions against the
// tree store, in either prove=true (returns opaque proof bytes) or
// prove=false (returns decoded elements directly) mode. It never
// reinterprets a proof's contents itself; that's the verifier's job.
type Server struct {
	Tree    *tree.Store
	Meta    func() Metadata
	Metrics *metrics.Registry // optional; nil disables proof-latency recording
}

// NewServer wires a Server over an open tree store; meta supplies the
// response metadata block attached to every answer.
func NewServer(t *tree.Store, meta func() Metadata) *Server {
	return &Server{Tree: t, Meta: meta}
}

// ProveKey runs a single-key path-query in prove=true mode and returns
// the opaque proof bytes.
func (s *Server) ProveKey(path tree.Path, key []byte) ([]byte, Metadata, error) {
	start := time.Now()
	proof, err := s.Tree.Prove(path, key)
	if s.Metrics != nil {
		s.Metrics.ProofLatencySeconds.WithLabelValues("prove_key").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, s.Meta(), queryerr.Newf(queryerr.KindNotFound, "prove %v/%x: %v", path, key, err)
	}
	return codec.Encode(proof), s.Meta(), nil
}

// FetchKey runs a single-key lookup without a proof, for server-local
// callers (e.g. the ABCI Query handler serving an unproven convenience
// path) that don't need verification.
func (s *Server) FetchKey(path tree.Path, key []byte) (*tree.Element, Metadata, error) {
	el, err := s.Tree.Get(path, key)
	if err != nil {
		return nil, s.Meta(), queryerr.Newf(queryerr.KindNotFound, "get %v/%x: %v", path, key, err)
	}
	return el, s.Meta(), nil
}

// RunQuery executes a ranged Query without a proof.
func (s *Server) RunQuery(q *tree.Query) ([]tree.QueryResult, Metadata, error) {
	results, err := s.Tree.Query(q)
	if err != nil {
		return nil, s.Meta(), queryerr.Newf(queryerr.KindInvalidArgument, "query %v: %v", q.Path, err)
	}
	return results, s.Meta(), nil
}

// RootDigest exposes the tree's current root digest, which every
// verifier needs to check a proof against.
func (s *Server) RootDigest() ([]byte, error) {
	return s.Tree.RootDigest()
}
