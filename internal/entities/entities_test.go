package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csvparser "github.com/clinica/import-service/internal/parsers/csv"
	"github.com/clinica/import-service/internal/types"
)

var fixedNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func row(headers []string, values ...string) types.RawRow {
	return types.NewRawRow(headers, values)
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"insumos", "supplies", "Produtos", "products", " pacientes ", "patients"} {
		s, ok := Lookup(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, s.CreatePath)
	}

	_, ok := Lookup("fornecedores")
	assert.False(t, ok)
	assert.Equal(t, []string{"insumos", "pacientes", "produtos"}, Names())
}

func TestNormalizeProduct(t *testing.T) {
	headers := []string{"nome", "categoria", "estoque_minimo", "estoque_atual", "preco", "codigo_barras", "ativo"}

	t.Run("category label alias", func(t *testing.T) {
		out := Supplies.NormalizeAt(row(headers, "Luva", "Material Médico", "5", "10", "R$ 12,50", "789", "sim"), 2, fixedNow)
		require.False(t, out.Rejected())

		p := out.Payload.(*Product)
		assert.Equal(t, "Luva", p.Name)
		assert.Equal(t, "medical_supply", p.Category)
		assert.Equal(t, 5, p.MinStock)
		assert.Equal(t, 10, p.CurrentStock)
		require.NotNil(t, p.UnitPrice)
		assert.InDelta(t, 12.5, *p.UnitPrice, 0.0001)
		assert.Equal(t, "unidade", p.UnitOfMeasure)
		assert.True(t, p.IsActive)
		assert.True(t, p.Has("barcode"))
	})

	t.Run("unknown category lists valid values", func(t *testing.T) {
		out := Supplies.NormalizeAt(row(headers, "Luva", "Brinquedo", "", "", "", "", ""), 3, fixedNow)
		require.True(t, out.Rejected())
		assert.Equal(t, 3, out.Rejection.RowIndex)
		assert.Contains(t, out.Rejection.Reason, `"Brinquedo"`)
		assert.Contains(t, out.Rejection.Reason, "medical_supply, medication, equipment")
	})

	t.Run("every missing required field reported", func(t *testing.T) {
		out := Supplies.NormalizeAt(row(headers, "", "", "1", "1", "", "", ""), 2, fixedNow)
		require.True(t, out.Rejected())
		assert.Equal(t, "Campos obrigatórios ausentes: nome, categoria", out.Rejection.Reason)
	})

	t.Run("negative stock rejected", func(t *testing.T) {
		out := Supplies.NormalizeAt(row(headers, "Luva", "medication", "-1", "", "", "", ""), 2, fixedNow)
		require.True(t, out.Rejected())
		assert.Contains(t, out.Rejection.Reason, "Estoque mínimo")

		out = Supplies.NormalizeAt(row(headers, "Luva", "medication", "", "99999999999999999999999", "", "", ""), 2, fixedNow)
		require.True(t, out.Rejected(), "overflowing stock must not wrap to a negative value")
		assert.Contains(t, out.Rejection.Reason, "Estoque atual")
	})

	t.Run("non-numeric current stock rejected", func(t *testing.T) {
		out := Supplies.NormalizeAt(row(headers, "Luva", "medication", "", "muito", "", "", ""), 2, fixedNow)
		require.True(t, out.Rejected())
		assert.Contains(t, out.Rejection.Reason, "Estoque atual")
	})

	t.Run("bad price dropped not rejected", func(t *testing.T) {
		out := Supplies.NormalizeAt(row(headers, "Luva", "medication", "", "", "grátis", "", "não"), 2, fixedNow)
		require.False(t, out.Rejected())

		p := out.Payload.(*Product)
		assert.Nil(t, p.UnitPrice)
		assert.False(t, p.IsActive)
		assert.Equal(t, 0, p.MinStock)
		assert.Len(t, out.Warnings, 1)
	})

	t.Run("retail table differs", func(t *testing.T) {
		out := Retail.NormalizeAt(row(headers, "Protetor", "dermocosmetico", "", "", "", "", ""), 2, fixedNow)
		require.False(t, out.Rejected())
		assert.Equal(t, "skincare", out.Payload.(*Product).Category)
	})
}

func TestProductOmitsEmptyOptionals(t *testing.T) {
	out := Supplies.NormalizeAt(row([]string{"nome", "categoria"}, "Gaze", "Material Médico"), 2, fixedNow)
	require.False(t, out.Rejected())

	data, err := json.Marshal(out.Payload)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"description", "supplier", "unit_price", "barcode"} {
		assert.NotContains(t, m, key)
	}
	assert.Contains(t, m, "min_stock")
}

func TestProductWithout(t *testing.T) {
	barcode := "789"
	p := &Product{Name: "Luva", Barcode: &barcode}

	stripped := p.Without("barcode")
	assert.False(t, stripped.Has("barcode"))
	assert.True(t, p.Has("barcode"), "original payload untouched")
}

func TestNormalizePatient(t *testing.T) {
	headers := []string{"nome", "sobrenome", "cpf", "telefone", "data_nascimento", "genero", "email", "tipo_sanguineo", "alergias"}

	t.Run("valid row", func(t *testing.T) {
		out := Patients.NormalizeAt(row(headers,
			"Maria", "Silva", "111.444.777-35", "(11) 98765-4321", "15/03/1985", "F", "Maria@Email.com", "o +", "Dipirona; Penicilina",
		), 2, fixedNow)
		require.False(t, out.Rejected())
		assert.Empty(t, out.Warnings)

		p := out.Payload.(*Patient)
		assert.Equal(t, "11144477735", *p.CPF)
		assert.Equal(t, "+5511987654321", *p.Phone)
		assert.Equal(t, "1985-03-15", *p.DateOfBirth)
		assert.Equal(t, "female", *p.Gender)
		assert.Equal(t, "maria@email.com", *p.Email)
		assert.Equal(t, "O+", *p.BloodType)
		assert.Equal(t, []string{"Dipirona", "Penicilina"}, p.Allergies)
	})

	t.Run("invalid cpf and phone are dropped", func(t *testing.T) {
		out := Patients.NormalizeAt(row(headers,
			"Maria", "", "111.111.111-11", "0000000000", "", "", "", "", "",
		), 2, fixedNow)
		require.False(t, out.Rejected())

		p := out.Payload.(*Patient)
		assert.Nil(t, p.CPF)
		assert.Nil(t, p.Phone)
		assert.Len(t, out.Warnings, 2)
	})

	t.Run("short cpf dropped not rejected", func(t *testing.T) {
		out := Patients.NormalizeAt(row(headers,
			"Maria", "", "1234567890", "", "", "", "", "", "",
		), 2, fixedNow)
		require.False(t, out.Rejected())

		p := out.Payload.(*Patient)
		assert.Nil(t, p.CPF)
		require.Len(t, out.Warnings, 1)
		assert.Contains(t, out.Warnings[0], "1234567890")
	})

	t.Run("future birth date rejected", func(t *testing.T) {
		out := Patients.NormalizeAt(row(headers, "Maria", "", "", "", "01/01/2030", "", "", "", ""), 4, fixedNow)
		require.True(t, out.Rejected())
		assert.Equal(t, 4, out.Rejection.RowIndex)
		assert.Contains(t, out.Rejection.Reason, "futuro")
	})

	t.Run("malformed birth date rejected", func(t *testing.T) {
		out := Patients.NormalizeAt(row(headers, "Maria", "", "", "", "32/13/2050", "", "", "", ""), 2, fixedNow)
		require.True(t, out.Rejected())
		assert.Contains(t, out.Rejection.Reason, "inválida")
	})

	t.Run("full name split", func(t *testing.T) {
		out := Patients.NormalizeAt(row([]string{"nome"}, "Maria da Silva"), 2, fixedNow)
		require.False(t, out.Rejected())

		p := out.Payload.(*Patient)
		assert.Equal(t, "Maria", p.FirstName)
		assert.Equal(t, "da Silva", *p.LastName)
	})

	t.Run("name required", func(t *testing.T) {
		out := Patients.NormalizeAt(row(headers, "", "Silva", "", "", "", "", "", "", ""), 2, fixedNow)
		require.True(t, out.Rejected())
		assert.Equal(t, "Campos obrigatórios ausentes: nome", out.Rejection.Reason)
	})
}

func TestNormalizeIsIdempotent(t *testing.T) {
	r := row([]string{"nome", "categoria", "estoque_atual"}, "Luva", "Brinquedo", "1")

	first := Supplies.NormalizeAt(r, 7, fixedNow)
	second := Supplies.NormalizeAt(r, 7, fixedNow)
	require.True(t, first.Rejected())
	assert.Equal(t, first.Rejection, second.Rejection)
}

func TestConflictRuleMatches(t *testing.T) {
	rule := Patients.ConflictRules[0]
	assert.True(t, rule.Matches("Patient with this PHONE already registered"))
	assert.True(t, rule.Matches("Telefone já cadastrado"))
	assert.False(t, rule.Matches("cpf duplicado"))

	assert.True(t, barcodeConflict.Matches("Product already exists"))
	assert.True(t, barcodeConflict.Matches("Código de barras duplicado"))
}

func TestTemplatesParseAndValidate(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s, _ := Lookup(name)
			rows := csvparser.Parse(s.Template)
			require.Len(t, rows, 2)
			assert.Equal(t, s.Headers(), rows[0].Keys)

			for i, r := range rows {
				out := s.NormalizeAt(r, types.RowIndexFor(i), fixedNow)
				assert.False(t, out.Rejected(), "template row %d must be importable", i)
				assert.Empty(t, out.Warnings)
			}
		})
	}
}
