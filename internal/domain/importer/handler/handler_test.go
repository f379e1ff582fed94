package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/budgetbee/importer/internal/domain/importer/mapper"
	"github.com/budgetbee/importer/internal/domain/importer/repository"
	"github.com/budgetbee/importer/internal/domain/importer/service"
)

type memoryRepo struct {
	bills []*repository.Bill
	debts []*repository.Debt
	audit *repository.ImportAudit
}

func (m *memoryRepo) ListBills(ctx context.Context, userID uuid.UUID) ([]*repository.Bill, error) {
	return m.bills, nil
}

func (m *memoryRepo) ListDebts(ctx context.Context, userID uuid.UUID) ([]*repository.Debt, error) {
	return m.debts, nil
}

func (m *memoryRepo) InsertBill(ctx context.Context, bill *repository.Bill) error {
	m.bills = append(m.bills, bill)
	return nil
}

func (m *memoryRepo) UpdateBill(ctx context.Context, bill *repository.Bill) error { return nil }

func (m *memoryRepo) InsertDebt(ctx context.Context, debt *repository.Debt) error {
	m.debts = append(m.debts, debt)
	return nil
}

func (m *memoryRepo) UpdateDebt(ctx context.Context, debt *repository.Debt) error { return nil }

func (m *memoryRepo) CreateAudit(ctx context.Context, audit *repository.ImportAudit) error {
	m.audit = audit
	return nil
}

type memoryStore struct {
	mappings map[string]mapper.Mapping
}

func (m *memoryStore) Get(ctx context.Context, userID uuid.UUID, signature string) (mapper.Mapping, error) {
	return m.mappings[userID.String()+signature], nil
}

func (m *memoryStore) Put(ctx context.Context, userID uuid.UUID, signature string, mp mapper.Mapping) error {
	if m.mappings == nil {
		m.mappings = make(map[string]mapper.Mapping)
	}
	m.mappings[userID.String()+signature] = mp
	return nil
}

func newTestServer(t *testing.T, repo *memoryRepo) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewImportService(repo, &memoryStore{}, logger)
	h := NewImportHandler(svc, logger)

	mux := http.NewServeMux()
	h.Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func workbookBytes(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Settings"))

	rows := [][]string{
		{"Bills", ""},
		{"Name", "Amount", "Frequency", "Due Day"},
		{"Council Tax", "180", "Monthly", "1"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Settings", cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, url string, userID uuid.UUID, file []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "budget.xlsx")
	require.NoError(t, err)
	_, err = part.Write(file)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/v1/import/analyze", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-User-ID", userID.String())
	return req
}

func do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func jsonRequest(t *testing.T, method, url string, userID uuid.UUID, body string) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID.String())
	return req
}

func TestImportHandler_Analyze(t *testing.T) {
	userID := uuid.New()

	t.Run("returns the detected session", func(t *testing.T) {
		server := newTestServer(t, &memoryRepo{})

		resp, payload := do(t, uploadRequest(t, server.URL, userID, workbookBytes(t)))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "detect", payload["step"])
		assert.Equal(t, "section_tables", payload["layout"])
		assert.NotEmpty(t, payload["session_id"])

		sections, ok := payload["sections"].([]any)
		require.True(t, ok)
		require.Len(t, sections, 1)
		section := sections[0].(map[string]any)
		assert.Equal(t, "bills", section["kind"])
		assert.Equal(t, false, section["mapping_from_cache"])
	})

	t.Run("rejects a missing user header", func(t *testing.T) {
		server := newTestServer(t, &memoryRepo{})

		req := uploadRequest(t, server.URL, userID, workbookBytes(t))
		req.Header.Del("X-User-ID")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects an unreadable file", func(t *testing.T) {
		server := newTestServer(t, &memoryRepo{})

		resp, payload := do(t, uploadRequest(t, server.URL, userID, []byte("not a workbook")))
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
		assert.Contains(t, payload["error"], "unreadable")
	})
}

func TestImportHandler_FullWizard(t *testing.T) {
	userID := uuid.New()
	repo := &memoryRepo{}
	server := newTestServer(t, repo)

	resp, payload := do(t, uploadRequest(t, server.URL, userID, workbookBytes(t)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := payload["session_id"].(string)
	base := server.URL + "/v1/import/sessions/" + sessionID

	resp, payload = do(t, jsonRequest(t, http.MethodPost, base+"/mapping", userID, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mapping", payload["step"])

	resp, payload = do(t, jsonRequest(t, http.MethodPost, base+"/preview", userID, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "preview", payload["step"])
	billsRows := payload["sections"].(map[string]any)["bills"].([]any)
	require.Len(t, billsRows, 1)
	assert.Equal(t, true, billsRows[0].(map[string]any)["valid"])

	resp, payload = do(t, jsonRequest(t, http.MethodPost, base+"/commit", userID, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", payload["step"])
	bills := payload["bills"].(map[string]any)
	assert.Equal(t, float64(1), bills["added"])

	require.Len(t, repo.bills, 1)
	assert.Equal(t, "Council Tax", repo.bills[0].Name)
	require.NotNil(t, repo.audit)

	// The session is gone once the wizard is done.
	resp2, err := http.DefaultClient.Do(jsonRequest(t, http.MethodPost, base+"/commit", userID, ""))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestImportHandler_SessionIsolation(t *testing.T) {
	userID := uuid.New()
	server := newTestServer(t, &memoryRepo{})

	resp, payload := do(t, uploadRequest(t, server.URL, userID, workbookBytes(t)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := payload["session_id"].(string)

	// A different user cannot touch the session.
	otherReq := jsonRequest(t, http.MethodPost,
		server.URL+"/v1/import/sessions/"+sessionID+"/mapping", uuid.New(), "")
	resp2, err := http.DefaultClient.Do(otherReq)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestImportHandler_DuplicateResolution(t *testing.T) {
	userID := uuid.New()
	dueDay := 1
	repo := &memoryRepo{bills: []*repository.Bill{{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      repository.BillKindBill,
		Name:      "Council Tax",
		Frequency: "monthly",
		DueDay:    &dueDay,
		ImportKey: "council tax||monthly|1",
	}}}
	server := newTestServer(t, repo)

	_, payload := do(t, uploadRequest(t, server.URL, userID, workbookBytes(t)))
	sessionID := payload["session_id"].(string)
	base := server.URL + "/v1/import/sessions/" + sessionID

	resp, _ := do(t, jsonRequest(t, http.MethodPost, base+"/mapping", userID, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = do(t, jsonRequest(t, http.MethodPost, base+"/preview", userID, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	row := payload["sections"].(map[string]any)["bills"].([]any)[0].(map[string]any)
	assert.Equal(t, "skip", row["action"])
	require.NotNil(t, row["duplicate"])

	// Switch the row to update, then commit.
	dupReq := jsonRequest(t, http.MethodPut, base+"/duplicates", userID,
		`{"section":"bills","row_index":0,"action":"update"}`)
	resp2, err := http.DefaultClient.Do(dupReq)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNoContent, resp2.StatusCode)

	resp, payload = do(t, jsonRequest(t, http.MethodPost, base+"/commit", userID, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bills := payload["bills"].(map[string]any)
	assert.Equal(t, float64(1), bills["updated"])
	assert.Equal(t, float64(0), bills["added"])
}
