package tests

import (
	"encoding/json"
	"net/http"
	"testing"
)

func Test_contactApi_submit(t *testing.T) {
	app := setup(t)

	t.Run("validation", func(t *testing.T) {
		tt := httpTest{
			body:     []byte(`{"name":"Cu Rious"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"email":   "this field is required",
				"subject": "this field is required",
				"message": "this field is required",
			}),
		}
		req, rec := newRequest(http.MethodPost, "/v1/contact", tt.body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("submission returns a reference ID", func(t *testing.T) {
		body := []byte(`{"name":"Cu Rious","email":"cu@test.cd","subject":"Tutoring","message":"Do you cover algebra?"}`)
		req, rec := newRequest(http.MethodPost, "/v1/contact", body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusAccepted, rec.Body.String())
		}
		var resp struct {
			Reference string `json:"reference"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Reference == "" {
			t.Error("expected a non-empty reference")
		}
	})
}
