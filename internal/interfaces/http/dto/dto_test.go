package dto

import (
	"encoding/json"
	"math"
	"net/http"
	"testing"

	app "github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRunInProgress, http.StatusConflict},
		{ErrCodeTokenRefreshFailed, http.StatusInternalServerError},
		{ErrCodeRunFailed, http.StatusInternalServerError},
		{"ERR_SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeValidation, NormalizeErrorCode(shared.CodeValidation))
	assert.Equal(t, ErrCodeRunFailed, NormalizeErrorCode(ErrCodeRunFailed))
}

func TestErrorResponse_JSON(t *testing.T) {
	data, err := json.Marshal(NewErrorResponse(ErrCodeRunInProgress, "busy"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"busy","code":"ERR_RUN_IN_PROGRESS"}`, string(data))
}

func TestRunReconciliationRequest_ToRunRequest(t *testing.T) {
	var body RunReconciliationRequest
	require.NoError(t, json.Unmarshal([]byte(`{"tolerance_value": "2.50"}`), &body))

	req := body.ToRunRequest(app.DefaultRunRequest())

	assert.True(t, req.DryRun)
	assert.True(t, req.Tolerance.Value.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 7, req.Tolerance.Days)
}

func TestRunReconciliationRequest_FractionalToleranceDays(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{`{"tolerance_days": 7.5}`, 7},
		{`{"tolerance_days": 3}`, 3},
		{`{"tolerance_days": 0.9}`, 0},
		{`{"tolerance_days": -0.5}`, -1},
		{`{"tolerance_days": 1e12}`, math.MaxInt32},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var body RunReconciliationRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &body))

			req := body.ToRunRequest(app.DefaultRunRequest())
			assert.Equal(t, tt.want, req.Tolerance.Days)
		})
	}

	var body RunReconciliationRequest
	require.NoError(t, json.Unmarshal([]byte(`{"tolerance_days": -0.5}`), &body))
	assert.Error(t, body.ToRunRequest(app.DefaultRunRequest()).Tolerance.Validate())
}

func TestNewRunReconciliationResponse_NilSlices(t *testing.T) {
	resp := NewRunReconciliationResponse(&app.Report{DryRun: true})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	for _, key := range []string{"vinculados", "ambiguous", "not_found", "nfe_errors", "danfes_propagados"} {
		assert.Equal(t, []any{}, body[key], key)
	}
	assert.Equal(t, true, body["success"])
}
