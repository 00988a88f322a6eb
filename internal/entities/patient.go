package entities

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinica/import-service/internal/normalize"
	"github.com/clinica/import-service/internal/types"
)

// Patient is the payload of POST /api/patients
type Patient struct {
	FirstName                    string   `json:"first_name" jsonschema:"minLength=1"`
	LastName                     *string  `json:"last_name,omitempty"`
	Email                        *string  `json:"email,omitempty" jsonschema:"format=email"`
	Phone                        *string  `json:"phone,omitempty" jsonschema:"pattern=^\\+55[0-9]+$"`
	CPF                          *string  `json:"cpf,omitempty" jsonschema:"pattern=^[0-9]{11}$"`
	DateOfBirth                  *string  `json:"date_of_birth,omitempty" jsonschema:"format=date"`
	Gender                       *string  `json:"gender,omitempty" jsonschema:"enum=male,enum=female,enum=other"`
	Address                      *string  `json:"address,omitempty"`
	EmergencyContactName         *string  `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone        *string  `json:"emergency_contact_phone,omitempty"`
	EmergencyContactRelationship *string  `json:"emergency_contact_relationship,omitempty"`
	Allergies                    []string `json:"allergies,omitempty"`
	ActiveProblems               []string `json:"active_problems,omitempty"`
	BloodType                    *string  `json:"blood_type,omitempty"`
	Notes                        *string  `json:"notes,omitempty"`
}

func (p *Patient) Has(field string) bool {
	switch field {
	case "phone":
		return p.Phone != nil
	case "email":
		return p.Email != nil
	case "cpf":
		return p.CPF != nil
	case "emergency_contact_phone":
		return p.EmergencyContactPhone != nil
	}
	return false
}

func (p *Patient) Without(field string) Payload {
	cp := *p
	switch field {
	case "phone":
		cp.Phone = nil
	case "email":
		cp.Email = nil
	case "cpf":
		cp.CPF = nil
	case "emergency_contact_phone":
		cp.EmergencyContactPhone = nil
	}
	return &cp
}

func (p *Patient) Label() string {
	if p.LastName == nil {
		return p.FirstName
	}
	return p.FirstName + " " + *p.LastName
}

// GenderOptions maps the accepted gender spellings to API values
var GenderOptions = []normalize.Option{
	{Value: "male", Label: "Masculino"},
	{Value: "female", Label: "Feminino"},
	{Value: "other", Label: "Outro"},
}

var genderLetters = map[string]string{"m": "male", "f": "female", "o": "other"}

var bloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

var patientFields = []Field{
	{Name: "first_name", Label: "nome", Aliases: []string{"nome", "first_name", "primeiro_nome", "nome completo", "name"}, Required: true},
	{Name: "last_name", Label: "sobrenome", Aliases: []string{"sobrenome", "last_name", "ultimo_nome"}},
	{Name: "email", Label: "email", Aliases: []string{"email", "e-mail"}},
	{Name: "phone", Label: "telefone", Aliases: []string{"telefone", "celular", "phone", "fone"}},
	{Name: "cpf", Label: "cpf", Aliases: []string{"cpf", "documento"}},
	{Name: "date_of_birth", Label: "data de nascimento", Aliases: []string{"data_nascimento", "data de nascimento", "nascimento", "date_of_birth", "birth_date"}},
	{Name: "gender", Label: "gênero", Aliases: []string{"genero", "gênero", "sexo", "gender"}},
	{Name: "address", Label: "endereço", Aliases: []string{"endereco", "endereço", "address"}},
	{Name: "emergency_contact_name", Label: "contato de emergência", Aliases: []string{"contato_emergencia_nome", "contato de emergência", "emergency_contact_name"}},
	{Name: "emergency_contact_phone", Label: "telefone de emergência", Aliases: []string{"contato_emergencia_telefone", "telefone de emergência", "emergency_contact_phone"}},
	{Name: "emergency_contact_relationship", Label: "parentesco", Aliases: []string{"contato_emergencia_parentesco", "parentesco", "emergency_contact_relationship"}},
	{Name: "allergies", Label: "alergias", Aliases: []string{"alergias", "allergies"}},
	{Name: "active_problems", Label: "problemas ativos", Aliases: []string{"problemas_ativos", "problemas ativos", "active_problems"}},
	{Name: "blood_type", Label: "tipo sanguíneo", Aliases: []string{"tipo_sanguineo", "tipo sanguíneo", "blood_type"}},
	{Name: "notes", Label: "observações", Aliases: []string{"observacoes", "observações", "notes", "obs"}},
}

var patientExportColumns = []ExportColumn{
	{Header: "nome", Key: "first_name"},
	{Header: "sobrenome", Key: "last_name"},
	{Header: "email", Key: "email"},
	{Header: "telefone", Key: "phone"},
	{Header: "cpf", Key: "cpf"},
	{Header: "data_nascimento", Key: "date_of_birth"},
	{Header: "genero", Key: "gender"},
	{Header: "endereco", Key: "address"},
	{Header: "contato_emergencia_nome", Key: "emergency_contact_name"},
	{Header: "contato_emergencia_telefone", Key: "emergency_contact_phone"},
	{Header: "contato_emergencia_parentesco", Key: "emergency_contact_relationship"},
	{Header: "alergias", Key: "allergies"},
	{Header: "problemas_ativos", Key: "active_problems"},
	{Header: "tipo_sanguineo", Key: "blood_type"},
	{Header: "observacoes", Key: "notes"},
}

const patientsTemplate = `nome,sobrenome,email,telefone,cpf,data_nascimento,genero,endereco,contato_emergencia_nome,contato_emergencia_telefone,contato_emergencia_parentesco,alergias,problemas_ativos,tipo_sanguineo,observacoes
Maria,Silva,maria.silva@email.com,(11) 98765-4321,111.444.777-35,15/03/1985,Feminino,"Rua das Flores, 123 - São Paulo/SP",João Silva,(11) 91234-5678,Esposo,Dipirona; Penicilina,Hipertensão,O+,Prefere atendimento pela manhã
José,Santos,,(21) 3456-7890,,1990-07-22,Masculino,,,,,,,A-,
`

// Patients is the "pacientes" entity
var Patients = &Schema{
	Name:        "pacientes",
	DisplayName: "Pacientes",
	Fields:      patientFields,
	CreatePath:  "/api/patients",
	ListPath:    "/api/v1/patients",
	ConflictRules: []ConflictRule{{
		Field:    "phone",
		Keywords: []string{"phone", "telefone"},
		Note:     "importado sem telefone (telefone já cadastrado para outro paciente)",
	}},
	Template:      patientsTemplate,
	ExportColumns: patientExportColumns,
	normalize:     normalizePatient,
}

func init() {
	register(Patients, "patients", "paciente")
}

func normalizePatient(s *Schema, row types.RawRow, rowIndex int, now time.Time) Outcome {
	if missing := s.missingRequired(row); len(missing) > 0 {
		return missingFieldsOutcome(rowIndex, missing)
	}

	p := &Patient{
		FirstName:                    s.Resolve(row, "first_name"),
		LastName:                     normalize.Optional(s.Resolve(row, "last_name")),
		Address:                      normalize.Optional(s.Resolve(row, "address")),
		EmergencyContactName:         normalize.Optional(s.Resolve(row, "emergency_contact_name")),
		EmergencyContactRelationship: normalize.Optional(s.Resolve(row, "emergency_contact_relationship")),
		Notes:                        normalize.Optional(s.Resolve(row, "notes")),
	}

	// "Maria da Silva" in a single column
	if p.LastName == nil {
		if first, rest, ok := strings.Cut(p.FirstName, " "); ok {
			p.FirstName = first
			p.LastName = normalize.Optional(rest)
		}
	}

	if raw := s.Resolve(row, "date_of_birth"); raw != "" {
		dob, err := normalize.ParseBirthDate(raw, now)
		if err != nil {
			return reject(rowIndex, "%s", capitalize(err.Error()))
		}
		p.DateOfBirth = &dob
	}

	var warnings []string
	drop := func(field, raw string) {
		log.Debug().Int("row", rowIndex).Str("field", field).Str("value", raw).Msg("Dropping invalid field")
		warnings = append(warnings, types.FormatRowMessage(rowIndex, field+" inválido ignorado: "+raw))
	}

	if raw := s.Resolve(row, "cpf"); raw != "" {
		if cpf, ok := normalize.NormalizeCPF(raw); ok {
			p.CPF = &cpf
		} else {
			drop("CPF", raw)
		}
	}

	if raw := s.Resolve(row, "phone"); raw != "" {
		if phone, ok := normalize.NormalizePhone(raw); ok {
			p.Phone = &phone
		} else {
			drop("Telefone", raw)
		}
	}

	if raw := s.Resolve(row, "emergency_contact_phone"); raw != "" {
		if phone, ok := normalize.NormalizePhone(raw); ok {
			p.EmergencyContactPhone = &phone
		} else {
			drop("Telefone de emergência", raw)
		}
	}

	if raw := s.Resolve(row, "email"); raw != "" {
		if normalize.ValidEmail(raw) {
			email := strings.ToLower(raw)
			p.Email = &email
		} else {
			drop("Email", raw)
		}
	}

	if raw := s.Resolve(row, "gender"); raw != "" {
		if gender, ok := matchGender(raw); ok {
			p.Gender = &gender
		} else {
			drop("Gênero", raw)
		}
	}

	if raw := s.Resolve(row, "blood_type"); raw != "" {
		bt := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
		if bloodTypes[bt] {
			p.BloodType = &bt
		} else {
			drop("Tipo sanguíneo", raw)
		}
	}

	p.Allergies = normalize.SplitList(s.Resolve(row, "allergies"))
	p.ActiveProblems = normalize.SplitList(s.Resolve(row, "active_problems"))
	if len(p.Allergies) == 0 {
		p.Allergies = nil
	}
	if len(p.ActiveProblems) == 0 {
		p.ActiveProblems = nil
	}

	return Outcome{Payload: p, Warnings: warnings}
}

func matchGender(raw string) (string, bool) {
	if v, ok := genderLetters[normalize.Fold(raw)]; ok {
		return v, true
	}
	if v, ok := normalize.MatchOption(raw, GenderOptions); ok {
		return v, true
	}
	switch normalize.Fold(raw) {
	case "masc", "homem":
		return "male", true
	case "fem", "mulher":
		return "female", true
	}
	return "", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
