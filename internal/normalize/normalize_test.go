package normalize

import (
	"testing"
	"time"

	"github.com/clinica/import-service/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 19, 15, 0, 0, 0, time.UTC)

func TestResolve(t *testing.T) {
	row := types.NewRawRow([]string{"nome", "name", "nome produto"}, []string{"  ", "Gloves", "Luva"})

	v, ok := Resolve(row, []string{"nome", "name", "nome produto"})
	assert.True(t, ok)
	assert.Equal(t, "Gloves", v, "first alias with a non-empty value wins")

	_, ok = Resolve(row, []string{"categoria", "category"})
	assert.False(t, ok)
}

func TestValidCPF(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"11144477735", true},
		{"52998224725", true},
		{"11111111111", false},
		{"00000000000", false},
		{"11144477736", false},
		{"1114447773", false},
		{"1114447773a", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidCPF(tt.input))
		})
	}
}

func TestNormalizeCPF(t *testing.T) {
	cpf, ok := NormalizeCPF("111.444.777-35")
	assert.True(t, ok)
	assert.Equal(t, "11144477735", cpf)

	_, ok = NormalizeCPF("1234567890")
	assert.False(t, ok, "ten digits are dropped")

	assert.Equal(t, "111.444.777-35", FormatCPF("11144477735"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"mobile with mask", "(11) 98765-4321", "+5511987654321", true},
		{"landline", "21 3456-7890", "+552134567890", true},
		{"with country code", "+55 11 98765-4321", "+5511987654321", true},
		{"country code landline", "55 21 3456 7890", "+552134567890", true},
		{"repeated digits", "0000000000", "", false},
		{"repeated nines", "99999999999", "", false},
		{"area code too low", "0198765432", "", false},
		{"too short", "98765432", "", false},
		{"too long", "1198765432100", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhone(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseBirthDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		errPart  string
	}{
		{"brazilian", "01/01/1990", "1990-01-01", ""},
		{"iso unchanged", "1990-01-01", "1990-01-01", ""},
		{"american inferred", "12/25/1985", "1985-12-25", ""},
		{"day first when both small", "05/06/1985", "1985-06-05", ""},
		{"dashed day first", "25-12-1985", "1985-12-25", ""},
		{"malformed future", "32/13/2050", "", "inválida"},
		{"too old", "01/01/1850", "", "1900"},
		{"future", "01/01/2030", "", "futuro"},
		{"february 31", "31/02/2000", "", "inválida"},
		{"garbage", "ontem", "", "inválida"},
		{"today", "19/10/2026", "2026-10-19", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBirthDate(tt.input, fixedNow)
			if tt.errPart != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errPart)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{"", 0, false},
		{"10", 10, false},
		{" 7 un ", 7, false},
		{"12,9", 12, false},
		{"-1", 0, true},
		{"abc", 0, true},
		{"1-2", 0, true},
		{"2147483647", 2147483647, false},
		{"2147483648", 0, true},
		{"99999999999999999999999", 0, true},
		{"9223372036854775808", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseQuantity(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"12,50", "12.5", true},
		{"R$ 1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"$3", "3", true},
		{"", "", false},
		{"grátis", "", false},
		{"-5,00", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got.String())
			}
		})
	}

	assert.Equal(t, "12,50", FormatPrice(12.5))
}

func TestMatchOption(t *testing.T) {
	options := []Option{
		{Value: "medical_supply", Label: "Material Médico"},
		{Value: "medication", Label: "Medicamento"},
		{Value: "cleaning", Label: "Limpeza"},
	}

	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"medical_supply", "medical_supply", true},
		{"Material Médico", "medical_supply", true},
		{"MATERIAL MÉDICO", "medical_supply", true},
		{"medical supply", "medical_supply", true},
		{"Medical  Supply", "medical_supply", true},
		{"material medico", "medical_supply", true},
		{"limpeza", "cleaning", true},
		{"brinquedo", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := MatchOption(tt.input, options)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}

	msg := InvalidOptionMessage("Categoria", "brinquedo", options)
	assert.Contains(t, msg, "brinquedo")
	assert.Contains(t, msg, "medical_supply, medication, cleaning")
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "Medico", RemoveDiacritics("Médico"))
	assert.Equal(t, "acao rapida", Fold("  AÇÃO   Rápida "))
	assert.Equal(t, []string{"Dipirona", "Penicilina, leve"}, SplitList("Dipirona; Penicilina, leve |  "))
	assert.True(t, ValidEmail("ana@clinica.com.br"))
	assert.False(t, ValidEmail("ana@clinica"))

	v, ok := ParseBool("Não")
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = ParseBool("talvez")
	assert.False(t, ok)

	assert.Nil(t, Optional("  "))
	assert.Equal(t, "x", *Optional(" x "))
}
