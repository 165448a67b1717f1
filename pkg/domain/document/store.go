package document

import (
	"encoding/hex"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/consensuserr"
	contractpkg "github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/tree"
)

// Store layers document operations over the authenticated tree store,
// resolving document-type/index descriptors from the contracts store.
type Store struct {
	tree      *tree.Store
	contracts *contractpkg.Store
}

func NewStore(t *tree.Store, contracts *contractpkg.Store) *Store {
	return &Store{tree: t, contracts: contracts}
}

func ruleID(id []byte) string { return hex.EncodeToString(id) }

func (s *Store) descriptor(contractID []byte, documentType string) (*contractpkg.Contract, *contractpkg.DocumentTypeDescriptor, error) {
	c, err := s.contracts.Get(contractID)
	if err != nil {
		return nil, nil, err
	}
	dt, ok := c.DocumentType(documentType)
	if !ok || !dt.Documents {
		return nil, nil, consensuserr.New(consensuserr.KindDocumentNotForContract, "document-type-must-exist", documentType)
	}
	return c, dt, nil
}

// Get fetches and decodes a document.
func (s *Store) Get(contractID []byte, documentType string, id []byte) (*Document, error) {
	el, err := s.tree.Get(DocumentsPath(contractID, documentType), id)
	if err != nil {
		return nil, err
	}
	d := &Document{}
	if err := codec.Decode(el.Item, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Create inserts a new document and materializes its index entries,
// rejecting the insert if a unique index is already occupied by another
// document.
func (s *Store) Create(doc *Document, epoch uint64) error {
	_, dt, err := s.descriptor(doc.ContractID, doc.DocumentType)
	if err != nil {
		return err
	}
	docsPath := DocumentsPath(doc.ContractID, doc.DocumentType)

	if _, err := s.tree.Get(docsPath, doc.ID); err == nil {
		return consensuserr.New(consensuserr.KindDocumentAlreadyExists, "document-id-unique", ruleID(doc.ID))
	}

	if err := s.checkUniqueIndices(doc.ContractID, doc.DocumentType, dt, doc, nil); err != nil {
		return err
	}

	doc.CreatedEpoch = epoch
	doc.UpdatedEpoch = epoch
	doc.Revision = 1

	b := tree.NewBatch().Insert(docsPath, doc.ID, tree.NewItem(codec.Encode(doc)))
	s.addIndexOps(b, doc.ContractID, doc.DocumentType, dt, doc)
	return s.tree.ApplyBatch(b)
}

// Replace overwrites an existing document's properties, re-materializing
// its index entries and, for history-retaining document types, archiving
// the prior revision under its history subtree.
func (s *Store) Replace(doc *Document, epoch uint64) error {
	_, dt, err := s.descriptor(doc.ContractID, doc.DocumentType)
	if err != nil {
		return err
	}
	existing, err := s.Get(doc.ContractID, doc.DocumentType, doc.ID)
	if err != nil {
		return err
	}

	if err := s.checkUniqueIndices(doc.ContractID, doc.DocumentType, dt, doc, existing); err != nil {
		return err
	}

	doc.CreatedEpoch = existing.CreatedEpoch
	doc.UpdatedEpoch = epoch
	doc.Revision = existing.Revision + 1

	docsPath := DocumentsPath(doc.ContractID, doc.DocumentType)
	b := tree.NewBatch()
	if dt.KeepsHistory {
		histPath := HistoryPath(doc.ContractID, doc.DocumentType, doc.ID)
		parent := docsPath.Append(historyPrefix)
		b.InsertOrReplace(docsPath, historyPrefix, tree.NewSubtree(tree.KindTree))
		b.InsertOrReplace(parent, doc.ID, tree.NewSubtree(tree.KindTree))
		if err := s.tree.ApplyBatch(b); err != nil {
			return err
		}
		b = tree.NewBatch()
		revKey := codec.Encode(&revisionKey{existing.Revision})
		b.Insert(histPath, revKey, tree.NewItem(codec.Encode(existing)))
	}

	s.removeIndexOps(b, doc.ContractID, doc.DocumentType, dt, existing)
	b.Replace(docsPath, doc.ID, tree.NewItem(codec.Encode(doc)))
	s.addIndexOps(b, doc.ContractID, doc.DocumentType, dt, doc)
	return s.tree.ApplyBatch(b)
}

// Delete removes a document and its index entries.
func (s *Store) Delete(contractID []byte, documentType string, id []byte) error {
	_, dt, err := s.descriptor(contractID, documentType)
	if err != nil {
		return err
	}
	existing, err := s.Get(contractID, documentType, id)
	if err != nil {
		return err
	}
	docsPath := DocumentsPath(contractID, documentType)
	b := tree.NewBatch()
	s.removeIndexOps(b, contractID, documentType, dt, existing)
	b.DeleteUpTreeWhileEmpty(docsPath, id)
	return s.tree.ApplyBatch(b)
}

// Transfer changes a document's owner through Replace, which rewrites all
// of the document's index entries; index keys are built from Properties
// only, so the owner id is not part of any of them.
func (s *Store) Transfer(contractID []byte, documentType string, id []byte, newOwner []byte, epoch uint64) error {
	doc, err := s.Get(contractID, documentType, id)
	if err != nil {
		return err
	}
	doc.OwnerID = newOwner
	return s.Replace(doc, epoch)
}

// UpdatePrice lists or delists a document for token-purchase (0 delists).
func (s *Store) UpdatePrice(contractID []byte, documentType string, id []byte, price uint64, epoch uint64) error {
	doc, err := s.Get(contractID, documentType, id)
	if err != nil {
		return err
	}
	doc.Price = price
	return s.Replace(doc, epoch)
}

// Purchase transfers a listed document to buyerID and clears its price;
// the corresponding credit/token movement is recorded by the pipeline
// before this call.
func (s *Store) Purchase(contractID []byte, documentType string, id []byte, buyerID []byte, epoch uint64) error {
	doc, err := s.Get(contractID, documentType, id)
	if err != nil {
		return err
	}
	doc.OwnerID = buyerID
	doc.Price = 0
	return s.Replace(doc, epoch)
}

func (s *Store) checkUniqueIndices(contractID []byte, documentType string, dt *contractpkg.DocumentTypeDescriptor, doc *Document, prior *Document) error {
	for _, idx := range dt.Indices {
		if !idx.Unique {
			continue
		}
		if prior != nil && indexEntryKey(idx, prior) != nil && string(indexEntryKey(idx, prior)) == string(indexEntryKey(idx, doc)) {
			continue // unchanged unique key, nothing to re-check
		}
		indexPath := contractpkg.IndexPath(contractID, documentType, idx.Name)
		if _, err := s.tree.Get(indexPath, indexEntryKey(idx, doc)); err == nil {
			return consensuserr.New(consensuserr.KindDuplicateUniqueIndex, "unique-index-"+idx.Name, ruleID(doc.ID))
		}
	}
	return nil
}

func (s *Store) addIndexOps(b *tree.Batch, contractID []byte, documentType string, dt *contractpkg.DocumentTypeDescriptor, doc *Document) {
	for _, idx := range dt.Indices {
		indexPath := contractpkg.IndexPath(contractID, documentType, idx.Name)
		b.InsertOrReplace(indexPath, indexEntryKey(idx, doc), tree.NewReference(DocumentsPath(contractID, documentType), doc.ID))
	}
}

func (s *Store) removeIndexOps(b *tree.Batch, contractID []byte, documentType string, dt *contractpkg.DocumentTypeDescriptor, doc *Document) {
	for _, idx := range dt.Indices {
		indexPath := contractpkg.IndexPath(contractID, documentType, idx.Name)
		b.DeleteUpTreeWhileEmpty(indexPath, indexEntryKey(idx, doc))
	}
}

// revisionKey canonically encodes a revision number as a sortable,
// fixed-width history-subtree key.
type revisionKey struct{ rev uint64 }

func (r *revisionKey) MarshalCanonical(w *codec.Writer) { w.PutUint64(r.rev) }
func (r *revisionKey) UnmarshalCanonical(rd *codec.Reader) error {
	v, err := rd.Uint64()
	r.rev = v
	return err
}
