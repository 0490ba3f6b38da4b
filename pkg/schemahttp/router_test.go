package schemahttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/landkeeper/engine/pkg/statetree"
)

func registerTestSchema(t *testing.T, typeName string) *statetree.NodeSchema {
	t.Helper()
	s, err := statetree.RegisterSchema(typeName, []statetree.FieldSchema{
		{Name: "score", Policy: statetree.PolicyBroadcast},
		{Name: "secret", Policy: statetree.PolicyServerOnly},
	})
	if err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	return s
}

func TestRegistryLandTypesSortedByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(LandTypeSchema{LandType: "room"})
	reg.Register(LandTypeSchema{LandType: "arena"})

	got := reg.LandTypes()
	if len(got) != 2 || got[0].LandType != "arena" || got[1].LandType != "room" {
		t.Fatalf("LandTypes() = %+v, want [arena, room]", got)
	}
}

func TestRegistryRegisterReplacesExisting(t *testing.T) {
	reg := NewRegistry()
	reg.Register(LandTypeSchema{LandType: "room", TypeIDs: []string{"a"}})
	reg.Register(LandTypeSchema{LandType: "room", TypeIDs: []string{"a", "b"}})

	got := reg.LandTypes()
	if len(got) != 1 || len(got[0].TypeIDs) != 2 {
		t.Fatalf("LandTypes() = %+v, want one entry with 2 typeIds", got)
	}
}

func TestHandlerServesDescriptorJSON(t *testing.T) {
	schema := registerTestSchema(t, "schemahttp_test_room")
	reg := NewRegistry()
	reg.Register(LandTypeSchema{LandType: "room", NodeSchema: schema, TypeIDs: []string{"move", "chat"}})

	req := httptest.NewRequest(http.MethodGet, "/schema", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.LandTypes) != 1 {
		t.Fatalf("len(LandTypes) = %d, want 1", len(doc.LandTypes))
	}
	got := doc.LandTypes[0]
	if got.LandType != "room" || got.NodeType != "schemahttp_test_room" {
		t.Fatalf("descriptor = %+v", got)
	}
	if len(got.Fields) != 2 || got.Fields[0].Name != "score" || got.Fields[1].Policy != "serverOnly" {
		t.Fatalf("fields = %+v", got.Fields)
	}
	if len(got.TypeIDs) != 2 {
		t.Fatalf("typeIds = %+v", got.TypeIDs)
	}
}

func TestRouterMountsSchemaRoute(t *testing.T) {
	reg := NewRegistry()
	reg.Register(LandTypeSchema{LandType: "room"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	Router(reg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
