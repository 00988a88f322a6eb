package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica/import-service/internal/backend"
	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/types"
)

var fixedNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

// fakeAPI records every payload it receives as decoded JSON
type fakeAPI struct {
	mu        sync.Mutex
	creates   []map[string]any
	lists     int
	createErr func(payload map[string]any) error
	listErr   error
}

func (f *fakeAPI) Create(_ context.Context, _ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	f.mu.Lock()
	f.creates = append(f.creates, m)
	f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr(m)
	}
	return nil
}

func (f *fakeAPI) List(context.Context, string) ([]backend.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []backend.Item{}, nil
}

func testOptions() Options {
	return Options{
		RefreshDelay: time.Millisecond,
		Now:          func() time.Time { return fixedNow },
	}
}

func productRows(n int, category string) []types.RawRow {
	headers := []string{"nome", "categoria", "estoque_atual", "codigo_barras"}
	rows := make([]types.RawRow, n)
	for i := range rows {
		rows[i] = types.NewRawRow(headers, []string{fmt.Sprintf("Item %d", i), category, "1", fmt.Sprintf("789%04d", i)})
	}
	return rows
}

func patientRow(name, phone string) types.RawRow {
	return types.NewRawRow([]string{"nome", "telefone"}, []string{name, phone})
}

func conflict(msg string) error {
	return &backend.APIError{Status: 409, Message: msg}
}

func TestSubmitAllSuccess(t *testing.T) {
	api := &fakeAPI{}
	c := NewCoordinator(entities.Supplies, api, testOptions())

	var progress []int
	result, err := c.SubmitAll(context.Background(), productRows(25, "Material Médico"), func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 25, result.Success)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Errors)
	assert.Len(t, api.creates, 25)
	assert.Equal(t, "medical_supply", api.creates[0]["category"])
	assert.Equal(t, 1, api.lists, "list reloaded once after success")
	assert.Equal(t, []int{36, 72, 90, 100}, progress)
}

func TestSubmitAllSizeLimit(t *testing.T) {
	api := &fakeAPI{}
	c := NewCoordinator(entities.Supplies, api, testOptions())

	_, err := c.SubmitAll(context.Background(), productRows(1001, "medication"), nil)

	var sle *SizeLimitError
	require.True(t, errors.As(err, &sle))
	assert.Equal(t, 1001, sle.Rows)
	assert.Empty(t, api.creates, "no request before the limit check")
	assert.Zero(t, api.lists)
}

func TestSubmitAllExactlyMaxRows(t *testing.T) {
	api := &fakeAPI{}
	c := NewCoordinator(entities.Supplies, api, testOptions())

	result, err := c.SubmitAll(context.Background(), productRows(1000, "medication"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, result.Success)
}

func TestSubmitAllEmpty(t *testing.T) {
	c := NewCoordinator(entities.Supplies, &fakeAPI{}, testOptions())

	_, err := c.SubmitAll(context.Background(), nil, nil)

	var ffe *FileFormatError
	assert.True(t, errors.As(err, &ffe))
	assert.True(t, IsAbort(err))
}

func TestSubmitAllErrorCap(t *testing.T) {
	api := &fakeAPI{}
	c := NewCoordinator(entities.Supplies, api, testOptions())

	result, err := c.SubmitAll(context.Background(), productRows(25, "Brinquedo"), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Success)
	assert.Equal(t, 25, result.Failed)
	assert.Len(t, result.Errors, 20)
	assert.True(t, result.Truncated)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Linha 2: Categoria inválida"))
	assert.True(t, strings.HasPrefix(result.Errors[19], "Linha 21: "))
	assert.Empty(t, api.creates)
	assert.Zero(t, api.lists, "no refresh without successes")
}

func TestSubmitAllMixedTallyIsMonotonic(t *testing.T) {
	rows := append(productRows(3, "medication"), productRows(2, "Brinquedo")...)
	api := &fakeAPI{createErr: func(m map[string]any) error {
		if m["name"] == "Item 1" {
			return &backend.APIError{Status: 500, Message: ""}
		}
		return nil
	}}
	c := NewCoordinator(entities.Supplies, api, Options{
		BatchSize:    1,
		RefreshDelay: time.Millisecond,
		Now:          func() time.Time { return fixedNow },
	})

	var progress []int
	result, err := c.SubmitAll(context.Background(), rows, func(p int) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, 5, result.Processed())
	assert.Contains(t, result.Errors, "Linha 3: Erro desconhecido")

	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.Equal(t, []int{18, 36, 54, 72, 90, 100}, progress)
}

func TestConflictRetryDropsPhoneWithNote(t *testing.T) {
	api := &fakeAPI{createErr: func(m map[string]any) error {
		if _, ok := m["phone"]; ok {
			return conflict("Já existe um paciente com este telefone")
		}
		return nil
	}}
	c := NewCoordinator(entities.Patients, api, testOptions())

	result, err := c.SubmitAll(context.Background(), []types.RawRow{patientRow("Ana", "(11) 98765-4321")}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, api.creates, 2)
	assert.Contains(t, api.creates[0], "phone")
	assert.NotContains(t, api.creates[1], "phone")
	require.Len(t, result.Notes, 1)
	assert.True(t, strings.HasPrefix(result.Notes[0], "Linha 2: importado sem telefone"))
}

func TestConflictRetryDropsBarcodeSilently(t *testing.T) {
	api := &fakeAPI{createErr: func(m map[string]any) error {
		if _, ok := m["barcode"]; ok {
			return conflict("Product with this barcode already exists")
		}
		return nil
	}}
	c := NewCoordinator(entities.Retail, api, testOptions())

	result, err := c.SubmitAll(context.Background(), productRows(1, "Suplemento"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Empty(t, result.Notes)
	assert.Len(t, api.creates, 2)
}

func TestConflictRetryFailureCombinesMessages(t *testing.T) {
	api := &fakeAPI{createErr: func(m map[string]any) error {
		if _, ok := m["phone"]; ok {
			return conflict("telefone duplicado")
		}
		return conflict("email inválido")
	}}
	c := NewCoordinator(entities.Patients, api, testOptions())

	result, err := c.SubmitAll(context.Background(), []types.RawRow{patientRow("Ana", "(11) 98765-4321")}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Linha 2: telefone duplicado; nova tentativa sem phone falhou: email inválido", result.Errors[0])
	assert.Len(t, api.creates, 2, "exactly one retry")
}

func TestConflictWithoutFieldIsNotRetried(t *testing.T) {
	api := &fakeAPI{createErr: func(map[string]any) error {
		return conflict("telefone duplicado")
	}}
	c := NewCoordinator(entities.Patients, api, testOptions())

	result, err := c.SubmitAll(context.Background(), []types.RawRow{patientRow("Ana", "")}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Len(t, api.creates, 1)
	assert.Equal(t, "Linha 2: telefone duplicado", result.Errors[0])
}

func TestDescribeForLog(t *testing.T) {
	err := fmt.Errorf("create: %w", &backend.APIError{
		Method:  "POST",
		Path:    "/api/v1/patients",
		Status:  409,
		Message: "cpf already registered",
	})
	assert.Equal(t, "POST /api/v1/patients: HTTP 409: cpf already registered", describeForLog(err))
	assert.Equal(t, "timeout", describeForLog(errors.New("timeout")))
}

func TestRefreshFailureIsOnlyAWarning(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("connection reset")}
	c := NewCoordinator(entities.Supplies, api, testOptions())

	result, err := c.SubmitAll(context.Background(), productRows(2, "medication"), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Success)
	assert.True(t, result.RefreshFailed)
	assert.Equal(t, DefaultRefreshRetries, api.lists)
}

func TestSubmitAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{}
	api.createErr = func(map[string]any) error {
		if len(api.creates) == 3 {
			cancel()
		}
		return nil
	}
	c := NewCoordinator(entities.Supplies, api, testOptions())

	result, err := c.SubmitAll(ctx, productRows(10, "medication"), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 3, result.Success)
}

func TestUploadSession(t *testing.T) {
	csvData := []byte("nome,categoria,estoque_atual\nLuva,Material Médico,10\nGaze,Outros,abc\n")
	api := &fakeAPI{}
	c := NewCoordinator(entities.Supplies, api, testOptions())
	session := NewSession()

	result, err := c.Upload(context.Background(), session, "insumos.csv", csvData, DefaultReadOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Failed)

	snap := session.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 100, snap.Progress)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 1, snap.Result.Success)

	session.Reset()
	assert.Nil(t, session.Snapshot().Result)
}

func TestUploadRejectsWhileBusy(t *testing.T) {
	session := NewSession()
	require.NoError(t, session.Begin("a.csv"))
	assert.True(t, session.Busy())

	c := NewCoordinator(entities.Supplies, &fakeAPI{}, testOptions())
	_, err := c.Upload(context.Background(), session, "b.csv", []byte("nome\nx\n"), DefaultReadOptions(), nil)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestUploadWrongExtension(t *testing.T) {
	c := NewCoordinator(entities.Supplies, &fakeAPI{}, testOptions())
	session := NewSession()

	_, err := c.Upload(context.Background(), session, "insumos.txt", []byte("nome\nx\n"), DefaultReadOptions(), nil)

	var ffe *FileFormatError
	require.True(t, errors.As(err, &ffe))
	assert.False(t, session.Busy(), "session released after abort")
}

func TestValidate(t *testing.T) {
	rows := append(productRows(2, "medication"), productRows(1, "Brinquedo")...)
	report := Validate(entities.Supplies, rows)

	assert.Equal(t, 3, report.TotalRows)
	assert.Equal(t, 2, report.ValidRows)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, 4, report.Rejections[0].RowIndex)
}
