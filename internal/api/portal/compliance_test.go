package portal

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/store"
)

func newComplianceRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	s := seededStore(t)

	h := NewComplianceHandlers(s)
	r := gin.New()
	r.Use(withUsername("supervisor"))
	r.GET("/api/v1/institutions/:id/compliance", h.ListHandler())
	r.PUT("/api/v1/institutions/:id/compliance", h.UpsertHandler())
	r.GET("/api/v1/institutions/:id/interventions", h.ListInterventionsHandler())
	r.POST("/api/v1/institutions/:id/interventions", h.CreateInterventionHandler())
	return r, s
}

// ---------------------------------------------------------------------------
// Compliance ledger
// ---------------------------------------------------------------------------

func TestListCompliance_SeededLedger(t *testing.T) {
	r, s := newComplianceRouter(t)
	cbzID := institutionIDByLicense(t, s, "BL-2020-001")

	w := doJSON(t, r, http.MethodGet, "/api/v1/institutions/"+cbzID+"/compliance", nil)
	wantStatus(t, w, http.StatusOK)

	data := decodeData(t, w)
	rows := data["requirements"].([]interface{})
	if len(rows) != 2 {
		t.Fatalf("len(requirements) = %d, want 2", len(rows))
	}
	// Met (100) and Partial (50) average to 75.
	if score := data["compliance_score"].(float64); score != 75 {
		t.Errorf("compliance_score = %v, want 75", score)
	}
}

func TestUpsertCompliance_RecomputesScore(t *testing.T) {
	r, s := newComplianceRouter(t)
	zbID := institutionIDByLicense(t, s, "BL-2019-014")

	// ZB starts with a single Met requirement; adding a Partial one should
	// pull the stored score from 100 down to 75.
	w := doJSON(t, r, http.MethodPut, "/api/v1/institutions/"+zbID+"/compliance", gin.H{
		"requirement": "Customer due diligence",
		"state":       "Partial",
		"notes":       "Sampling found gaps in beneficial ownership records",
	})
	wantStatus(t, w, http.StatusOK)

	row := decodeData(t, w)["requirement"].(map[string]interface{})
	if row["state"] != "Partial" {
		t.Errorf("state = %v, want Partial", row["state"])
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/institutions/"+zbID+"/compliance", nil)
	wantStatus(t, w, http.StatusOK)
	if score := decodeData(t, w)["compliance_score"].(float64); score != 75 {
		t.Errorf("compliance_score = %v, want 75", score)
	}
}

func TestUpsertCompliance_UnknownState(t *testing.T) {
	r, s := newComplianceRouter(t)
	zbID := institutionIDByLicense(t, s, "BL-2019-014")

	w := doJSON(t, r, http.MethodPut, "/api/v1/institutions/"+zbID+"/compliance", gin.H{
		"requirement": "Customer due diligence",
		"state":       "Exceeded",
	})
	wantStatus(t, w, http.StatusBadRequest)
}

func TestListCompliance_UnknownInstitution(t *testing.T) {
	r, _ := newComplianceRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/institutions/nope/compliance", nil)
	wantStatus(t, w, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Interventions
// ---------------------------------------------------------------------------

func TestCreateIntervention_RecordsIssuer(t *testing.T) {
	r, s := newComplianceRouter(t)
	zbID := institutionIDByLicense(t, s, "BL-2019-014")

	w := doJSON(t, r, http.MethodPost, "/api/v1/institutions/"+zbID+"/interventions", gin.H{
		"action": "Warning letter",
		"notes":  "Close overdue training gap within 60 days",
	})
	wantStatus(t, w, http.StatusCreated)

	iv := decodeData(t, w)["intervention"].(map[string]interface{})
	if iv["issued_by"] != "supervisor" {
		t.Errorf("issued_by = %v, want supervisor", iv["issued_by"])
	}
	if iv["id"] == "" {
		t.Error("id not assigned")
	}
}

func TestListInterventions_MostRecentFirst(t *testing.T) {
	r, s := newComplianceRouter(t)
	cbzID := institutionIDByLicense(t, s, "BL-2020-001")

	w := doJSON(t, r, http.MethodPost, "/api/v1/institutions/"+cbzID+"/interventions", gin.H{
		"action": "On-site inspection ordered",
	})
	wantStatus(t, w, http.StatusCreated)

	w = doJSON(t, r, http.MethodGet, "/api/v1/institutions/"+cbzID+"/interventions", nil)
	wantStatus(t, w, http.StatusOK)

	rows := decodeData(t, w)["interventions"].([]interface{})
	if len(rows) != 2 {
		t.Fatalf("len(interventions) = %d, want 2", len(rows))
	}
	if action := rows[0].(map[string]interface{})["action"]; action != "On-site inspection ordered" {
		t.Errorf("first action = %v, want the newest intervention", action)
	}
}

func TestCreateIntervention_UnknownInstitution(t *testing.T) {
	r, _ := newComplianceRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/institutions/nope/interventions", gin.H{
		"action": "Warning letter",
	})
	wantStatus(t, w, http.StatusNotFound)
}
