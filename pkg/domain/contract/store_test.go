package contract

import (
	"testing"

	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/storage"
	"github.com/meridianchain/drive/pkg/tree"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ts := tree.Open(storage.NewMemory())
	if err := Bootstrap(ts); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return NewStore(ts)
}

func sampleContract(id byte) *Contract {
	return &Contract{
		ID:      []byte{id},
		OwnerID: []byte{0xAA},
		Version: 1,
		DocumentTypes: []*DocumentTypeDescriptor{
			{
				Name:      "note",
				Documents: true,
				Indices: []*IndexDescriptor{
					{Name: "byOwner", Properties: []IndexProperty{{Name: "ownerId"}}, Unique: false},
				},
			},
		},
	}
}

func TestCreateAndGetContract(t *testing.T) {
	s := newTestStore(t)
	c := sampleContract(0x01)

	if err := s.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.DocumentTypes) != 1 || got.DocumentTypes[0].Name != "note" {
		t.Errorf("unexpected document types: %+v", got.DocumentTypes)
	}
}

func TestGetMissingContractFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get([]byte{0xFF})
	if err == nil {
		t.Fatal("expected error fetching missing contract")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindDataContractNotPresent {
		t.Errorf("expected KindDataContractNotPresent, got %v", err)
	}
}

func TestUpdateReadonlyContractFails(t *testing.T) {
	s := newTestStore(t)
	c := sampleContract(0x01)
	c.ReadOnly = true
	if err := s.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := s.Update(c, true)
	if err == nil {
		t.Fatal("expected error updating a readonly contract")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindContractIsReadonly {
		t.Errorf("expected KindContractIsReadonly, got %v", err)
	}
}

func TestUpdateRejectsConfigChangeWithoutPermission(t *testing.T) {
	s := newTestStore(t)
	c := sampleContract(0x01)
	if err := s.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := *c
	updated.Tokens = append(updated.Tokens, &TokenConfig{Position: 0, BaseSupply: 100})
	err := s.Update(&updated, false)
	if err == nil {
		t.Fatal("expected error changing token config without allowConfigChange")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindContractConfigUpdateForbidden {
		t.Errorf("expected KindContractConfigUpdateForbidden, got %v", err)
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	c := sampleContract(0x01)
	if err := s.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := *c
	if err := s.Update(&updated, true); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.Get(c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("version: got %d, want 2", got.Version)
	}
}
