package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/classroom-backend/internal/platform/apierr"
)

func serve(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondServiceError(c, err)
	var env ErrorEnvelope
	if jerr := json.Unmarshal(rec.Body.Bytes(), &env); jerr != nil {
		t.Fatalf("decode: %v body=%s", jerr, rec.Body.String())
	}
	return rec, env
}

func TestRespondServiceErrorUsesAPIStatus(t *testing.T) {
	rec, env := serve(t, apierr.NotFound("job_not_found", "job %d not found", 7))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: want=%d got=%d", http.StatusNotFound, rec.Code)
	}
	if env.Error.Code != "job_not_found" || env.Error.Message != "job 7 not found" {
		t.Fatalf("envelope: got=%+v", env)
	}
}

func TestRespondServiceErrorHidesInternalDetails(t *testing.T) {
	rec, env := serve(t, errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", rec.Code)
	}
	if env.Error.Code != "internal_error" || env.Error.Message != "unknown error" {
		t.Fatalf("envelope: got=%+v", env)
	}
}
