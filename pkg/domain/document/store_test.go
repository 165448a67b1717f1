package document

import (
	"testing"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/consensuserr"
	contractpkg "github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/storage"
	"github.com/meridianchain/drive/pkg/tree"
)

func newTestStores(t *testing.T) (*Store, *contractpkg.Store) {
	t.Helper()
	ts := tree.Open(storage.NewMemory())
	if err := contractpkg.Bootstrap(ts); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	contracts := contractpkg.NewStore(ts)

	c := &contractpkg.Contract{
		ID: []byte{0x01},
		DocumentTypes: []*contractpkg.DocumentTypeDescriptor{
			{
				Name:         "note",
				Documents:    true,
				KeepsHistory: true,
				Indices: []*contractpkg.IndexDescriptor{
					{Name: "byTitle", Properties: []contractpkg.IndexProperty{{Name: "title"}}, Unique: true},
				},
			},
		},
	}
	if err := contracts.Create(c); err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return NewStore(ts, contracts), contracts
}

func sampleDoc(id byte, title string) *Document {
	d := &Document{ID: []byte{id}, ContractID: []byte{0x01}, DocumentType: "note", OwnerID: []byte{0xAA}}
	d.Set("title", []byte(title))
	return d
}

func TestCreateAndGetDocument(t *testing.T) {
	s, _ := newTestStores(t)
	doc := sampleDoc(1, "hello")

	if err := s.Create(doc, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get([]byte{0x01}, "note", doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v, ok := got.Get("title"); !ok || string(v) != "hello" {
		t.Errorf("title: got %q", v)
	}
	if got.Revision != 1 {
		t.Errorf("revision: got %d, want 1", got.Revision)
	}
}

func TestCreateDuplicateUniqueIndexFails(t *testing.T) {
	s, _ := newTestStores(t)
	if err := s.Create(sampleDoc(1, "hello"), 0); err != nil {
		t.Fatalf("create 1: %v", err)
	}

	err := s.Create(sampleDoc(2, "hello"), 0)
	if err == nil {
		t.Fatal("expected duplicate unique index error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindDuplicateUniqueIndex {
		t.Errorf("expected KindDuplicateUniqueIndex, got %v", err)
	}
}

func TestCreateDuplicateIDFails(t *testing.T) {
	s, _ := newTestStores(t)
	s.Create(sampleDoc(1, "hello"), 0)

	err := s.Create(sampleDoc(1, "world"), 0)
	if err == nil {
		t.Fatal("expected document-already-exists error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindDocumentAlreadyExists {
		t.Errorf("expected KindDocumentAlreadyExists, got %v", err)
	}
}

func TestReplaceArchivesHistory(t *testing.T) {
	s, _ := newTestStores(t)
	doc := sampleDoc(1, "hello")
	s.Create(doc, 0)

	doc.Set("title", []byte("updated"))
	if err := s.Replace(doc, 1); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.Get([]byte{0x01}, "note", doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Revision != 2 {
		t.Errorf("revision: got %d, want 2", got.Revision)
	}

	hist, err := s.tree.Get(HistoryPath([]byte{0x01}, "note", doc.ID), codec.Encode(&revisionKey{1}))
	if err != nil {
		t.Fatalf("expected archived revision 1: %v", err)
	}
	if hist == nil {
		t.Fatal("expected non-nil archived element")
	}
}

func TestDeleteDocument(t *testing.T) {
	s, _ := newTestStores(t)
	doc := sampleDoc(1, "hello")
	s.Create(doc, 0)

	if err := s.Delete([]byte{0x01}, "note", doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get([]byte{0x01}, "note", doc.ID); err == nil {
		t.Fatal("expected error fetching deleted document")
	}
}

func TestTransferChangesOwner(t *testing.T) {
	s, _ := newTestStores(t)
	doc := sampleDoc(1, "hello")
	s.Create(doc, 0)

	if err := s.Transfer([]byte{0x01}, "note", doc.ID, []byte{0xBB}, 1); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	got, _ := s.Get([]byte{0x01}, "note", doc.ID)
	if string(got.OwnerID) != string([]byte{0xBB}) {
		t.Errorf("owner: got %x, want bb", got.OwnerID)
	}
}
