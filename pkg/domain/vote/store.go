package vote

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/tree"
)

// Store layers contested-resource voting over the authenticated tree store.
type Store struct {
	tree *tree.Store
}

func NewStore(t *tree.Store) *Store { return &Store{tree: t} }

// Bootstrap creates the top-level contested-resources, queue, and votes
// subtrees.
func Bootstrap(t *tree.Store) error {
	b := tree.NewBatch().
		InsertOrReplace(tree.Path{}, []byte("contested-resources"), tree.NewSubtree(tree.KindTree)).
		InsertOrReplace(tree.Path{}, []byte("contested-resources-by-end-epoch"), tree.NewSubtree(tree.KindTree)).
		InsertOrReplace(tree.Path{}, []byte("contested-resource-votes"), tree.NewSubtree(tree.KindTree))
	return t.ApplyBatch(b)
}

func ruleID(id []byte) string { return hex.EncodeToString(id) }

// ResourceID deterministically derives a contested resource's id from the
// document-index coordinates it contests.
func ResourceID(contractID []byte, documentType, indexName string, indexKey []byte) []byte {
	h := sha256.New()
	h.Write(contractID)
	h.Write([]byte(documentType))
	h.Write([]byte(indexName))
	h.Write(indexKey)
	return h.Sum(nil)
}

// Get fetches and decodes a contested resource.
func (s *Store) Get(resourceID []byte) (*ContestedResource, error) {
	el, err := s.tree.Get(ResourcesPath(), resourceID)
	if err != nil {
		if treeErr, ok := err.(*tree.Error); ok && treeErr.Kind == tree.FailurePathKeyNotFound {
			return nil, consensuserr.New(consensuserr.KindContestedResourceNotFound, "contested-resource-must-exist", ruleID(resourceID))
		}
		return nil, err
	}
	r := &ContestedResource{}
	if err := codec.Decode(el.Item, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Open creates a new contested resource (or, if one already exists for
// the same index coordinates, adds documentID as an additional contender)
// and queues it for resolution at endEpoch.
func (s *Store) Open(contractID []byte, documentType, indexName string, indexKey []byte, documentID, ownerID []byte, endEpoch uint64) error {
	id := ResourceID(contractID, documentType, indexName, indexKey)
	existing, err := s.Get(id)
	if err != nil {
		if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindContestedResourceNotFound {
			return err
		}
		res := &ContestedResource{
			ID: id, ContractID: contractID, DocumentType: documentType, IndexName: indexName,
			IndexKey: indexKey, EndEpoch: endEpoch,
			Contenders: []*Contender{{DocumentID: documentID, OwnerID: ownerID}},
		}
		b := tree.NewBatch().
			Insert(ResourcesPath(), id, tree.NewItem(codec.Encode(res))).
			Insert(QueuePath(), QueueKey(endEpoch, id), tree.NewReference(ResourcesPath(), id)).
			InsertOrReplace(votesPath, id, tree.NewSubtree(tree.KindTree))
		return s.tree.ApplyBatch(b)
	}

	existing.Contenders = append(existing.Contenders, &Contender{DocumentID: documentID, OwnerID: ownerID})
	return s.tree.ApplyBatch(tree.NewBatch().Replace(ResourcesPath(), id, tree.NewItem(codec.Encode(existing))))
}

// CastVote records a masternode's ballot, replacing any prior vote it cast
// for the same resource and adjusting tallies accordingly. Only
// masternodes may vote.
func (s *Store) CastVote(resourceID, voterID []byte, choice Choice, documentID []byte, castEpoch uint64, isMasternode bool) error {
	if !isMasternode {
		return consensuserr.New(consensuserr.KindMasternodeVoteNotAllowed, "vote-requires-masternode", ruleID(voterID))
	}
	res, err := s.Get(resourceID)
	if err != nil {
		return err
	}

	if prior, err := s.priorVote(resourceID, voterID); err == nil {
		s.retractTally(res, prior)
	}

	switch choice {
	case ChoiceDocument:
		if c := res.contender(documentID); c != nil {
			c.Votes++
		}
	case ChoiceAbstain:
		res.AbstainVotes++
	case ChoiceLock:
		res.LockVotes++
	}

	rec := &Record{Choice: choice, DocumentID: documentID, CastEpoch: castEpoch}
	b := tree.NewBatch().
		Replace(ResourcesPath(), resourceID, tree.NewItem(codec.Encode(res))).
		InsertOrReplace(VotesPath(resourceID), voterID, tree.NewItem(codec.Encode(rec)))
	return s.tree.ApplyBatch(b)
}

func (s *Store) priorVote(resourceID, voterID []byte) (*Record, error) {
	el, err := s.tree.Get(VotesPath(resourceID), voterID)
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err := codec.Decode(el.Item, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) retractTally(res *ContestedResource, prior *Record) {
	switch prior.Choice {
	case ChoiceDocument:
		if c := res.contender(prior.DocumentID); c != nil && c.Votes > 0 {
			c.Votes--
		}
	case ChoiceAbstain:
		if res.AbstainVotes > 0 {
			res.AbstainVotes--
		}
	case ChoiceLock:
		if res.LockVotes > 0 {
			res.LockVotes--
		}
	}
}

// DueForResolution returns every contested resource whose end epoch has
// passed as of currentEpoch, removing them from the pending queue. The
// caller (pipeline) is responsible for awarding the winning contender's
// document and discarding the rest.
func (s *Store) DueForResolution(currentEpoch uint64) ([]*ContestedResource, error) {
	results, err := s.tree.Query(tree.NewQuery(QueuePath(), tree.ItemFull()))
	if err != nil {
		return nil, err
	}

	var due []*ContestedResource
	b := tree.NewBatch()
	for _, entry := range results {
		epoch, resourceID, err := parseQueueKey(entry.Key)
		if err != nil {
			return nil, err
		}
		if epoch > currentEpoch {
			continue
		}
		res, err := s.Get(resourceID)
		if err != nil {
			return nil, err
		}
		due = append(due, res)
		b.DeleteUpTreeWhileEmpty(QueuePath(), entry.Key)
	}
	if len(b.Ops) > 0 {
		if err := s.tree.ApplyBatch(b); err != nil {
			return nil, err
		}
	}
	return due, nil
}

func parseQueueKey(key []byte) (uint64, []byte, error) {
	r := codec.NewReader(key)
	epoch, err := r.Uint64()
	if err != nil {
		return 0, nil, err
	}
	resourceID, err := r.FixedBytes(r.Remaining())
	if err != nil {
		return 0, nil, err
	}
	return epoch, resourceID, nil
}

// VerifyGroupThreshold checks that the combined weight of signerIDs in
// group meets its configured threshold.
func VerifyGroupThreshold(members map[string]uint32, threshold uint32, signerIDs [][]byte) error {
	var total uint32
	ids := make([]string, 0, len(signerIDs))
	for _, id := range signerIDs {
		total += members[string(id)]
		ids = append(ids, hex.EncodeToString(id))
	}
	if total < threshold {
		return consensuserr.New(consensuserr.KindGroupSignersInsufficient, "group-threshold", ids...)
	}
	return nil
}
