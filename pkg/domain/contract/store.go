package contract

import (
	"encoding/hex"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/tree"
)

// Store layers data-contract operations over the authenticated tree store.
type Store struct {
	tree *tree.Store
}

func NewStore(t *tree.Store) *Store { return &Store{tree: t} }

// Bootstrap creates the top-level data-contracts and documents subtrees.
func Bootstrap(t *tree.Store) error {
	b := tree.NewBatch().
		InsertOrReplace(tree.Path{}, []byte("data-contracts"), tree.NewSubtree(tree.KindTree)).
		InsertOrReplace(tree.Path{}, []byte("documents"), tree.NewSubtree(tree.KindTree))
	return t.ApplyBatch(b)
}

func ruleID(id []byte) string { return hex.EncodeToString(id) }

// Get fetches and decodes a data contract by id.
func (s *Store) Get(id []byte) (*Contract, error) {
	el, err := s.tree.Get(ContractsPath(), id)
	if err != nil {
		if treeErr, ok := err.(*tree.Error); ok && treeErr.Kind == tree.FailurePathKeyNotFound {
			return nil, consensuserr.New(consensuserr.KindDataContractNotPresent, "contract-must-exist", ruleID(id))
		}
		return nil, err
	}
	c := &Contract{}
	if err := codec.Decode(el.Item, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new data contract and provisions a documents subtree
// for each of its document-bearing types plus one subtree per declared
// index.
func (s *Store) Create(c *Contract) error {
	b := tree.NewBatch().Insert(ContractsPath(), c.ID, tree.NewItem(codec.Encode(c)))
	if err := s.tree.ApplyBatch(b); err != nil {
		return err
	}
	for _, dt := range c.DocumentTypes {
		if !dt.Documents {
			continue
		}
		if err := s.provisionDocumentType(c.ID, dt); err != nil {
			return err
		}
	}
	return nil
}

// provisionDocumentType lays down the per-contract/per-document-type chain
// of subtrees: documents/{contractID}/{typeName}/by-index/{indexName}.
// Each level must be InsertOrReplace'd before the next, since the tree
// store refuses to load a path whose parent subtree entry doesn't exist
// yet (tree.FailurePathParentLayerMissing).
func (s *Store) provisionDocumentType(contractID []byte, dt *DocumentTypeDescriptor) error {
	documentsPath := tree.NewPath("documents")
	contractDocsPath := documentsPath.Append(contractID)
	if err := s.tree.ApplyBatch(tree.NewBatch().InsertOrReplace(documentsPath, contractID, tree.NewSubtree(tree.KindTree))); err != nil {
		return err
	}

	typePath := contractDocsPath.Append([]byte(dt.Name))
	if err := s.tree.ApplyBatch(tree.NewBatch().InsertOrReplace(contractDocsPath, []byte(dt.Name), tree.NewSubtree(tree.KindTree))); err != nil {
		return err
	}

	indexParentPath := typePath.Append(tree.PathSeg("by-index"))
	if err := s.tree.ApplyBatch(tree.NewBatch().InsertOrReplace(typePath, []byte("by-index"), tree.NewSubtree(tree.KindTree))); err != nil {
		return err
	}

	for _, idx := range dt.Indices {
		if err := s.tree.ApplyBatch(tree.NewBatch().InsertOrReplace(indexParentPath, []byte(idx.Name), tree.NewSubtree(tree.KindTree))); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces a contract's definition, rejecting the change outright
// if the contract is marked read-only.
func (s *Store) Update(c *Contract, allowConfigChange bool) error {
	existing, err := s.Get(c.ID)
	if err != nil {
		return err
	}
	if existing.ReadOnly {
		return consensuserr.New(consensuserr.KindContractIsReadonly, "contract-not-updatable", ruleID(c.ID))
	}
	if !allowConfigChange && (len(existing.Tokens) != len(c.Tokens) || existing.ReadOnly != c.ReadOnly) {
		return consensuserr.New(consensuserr.KindContractConfigUpdateForbidden, "contract-config-immutable-fields", ruleID(c.ID))
	}
	c.Version = existing.Version + 1
	return s.tree.ApplyBatch(tree.NewBatch().Replace(ContractsPath(), c.ID, tree.NewItem(codec.Encode(c))))
}
