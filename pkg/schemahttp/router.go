package schemahttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// FieldDescriptor is the JSON-safe projection of statetree.FieldSchema; the
// Mask/Custom function values have no serializable form, so only the
// policy name crosses the wire.
type FieldDescriptor struct {
	Name   string `json:"name"`
	Policy string `json:"policy"`
}

// LandTypeDescriptor is the JSON-safe projection of LandTypeSchema.
type LandTypeDescriptor struct {
	LandType string            `json:"landType"`
	NodeType string            `json:"nodeType"`
	Fields   []FieldDescriptor `json:"fields"`
	TypeIDs  []string          `json:"typeIds"`
}

// Document is the full GET /schema response body.
type Document struct {
	LandTypes []LandTypeDescriptor `json:"landTypes"`
}

func describe(s LandTypeSchema) LandTypeDescriptor {
	d := LandTypeDescriptor{LandType: s.LandType, TypeIDs: s.TypeIDs}
	if s.NodeSchema != nil {
		d.NodeType = s.NodeSchema.TypeName
		for _, f := range s.NodeSchema.Fields() {
			d.Fields = append(d.Fields, FieldDescriptor{Name: f.Name, Policy: f.Policy.String()})
		}
	}
	if d.TypeIDs == nil {
		d.TypeIDs = []string{}
	}
	return d
}

// Handler returns an http.Handler serving registry's current contents as
// the GET /schema response body.
func Handler(registry *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		landTypes := registry.LandTypes()
		doc := Document{LandTypes: make([]LandTypeDescriptor, 0, len(landTypes))}
		for _, s := range landTypes {
			doc.LandTypes = append(doc.LandTypes, describe(s))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})
}

// Router returns a chi.Router exposing GET /schema over registry's
// contents. A host application mounts it directly: r.Mount("/schema",
// schemahttp.Router(registry)).
func Router(registry *Registry) chi.Router {
	r := chi.NewRouter()
	r.Get("/", Handler(registry).ServeHTTP)
	return r
}
