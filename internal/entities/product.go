package entities

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinica/import-service/internal/normalize"
	"github.com/clinica/import-service/internal/types"
)

const defaultUnit = "unidade"

// Product is the payload of POST /api/v1/stock/products
type Product struct {
	Name          string   `json:"name" jsonschema:"minLength=1"`
	Category      string   `json:"category"`
	Description   *string  `json:"description,omitempty"`
	Supplier      *string  `json:"supplier,omitempty"`
	MinStock      int      `json:"min_stock" jsonschema:"minimum=0"`
	CurrentStock  int      `json:"current_stock" jsonschema:"minimum=0"`
	UnitPrice     *float64 `json:"unit_price,omitempty" jsonschema:"minimum=0"`
	UnitOfMeasure string   `json:"unit_of_measure"`
	Barcode       *string  `json:"barcode,omitempty"`
	IsActive      bool     `json:"is_active"`
}

func (p *Product) Has(field string) bool {
	switch field {
	case "description":
		return p.Description != nil
	case "supplier":
		return p.Supplier != nil
	case "unit_price":
		return p.UnitPrice != nil
	case "barcode":
		return p.Barcode != nil
	}
	return false
}

func (p *Product) Without(field string) Payload {
	cp := *p
	switch field {
	case "description":
		cp.Description = nil
	case "supplier":
		cp.Supplier = nil
	case "unit_price":
		cp.UnitPrice = nil
	case "barcode":
		cp.Barcode = nil
	}
	return &cp
}

func (p *Product) Label() string {
	return p.Name
}

var productFields = []Field{
	{Name: "name", Label: "nome", Aliases: []string{"nome", "name", "produto", "nome do produto", "nome_produto"}, Required: true},
	{Name: "category", Label: "categoria", Aliases: []string{"categoria", "category", "tipo"}, Required: true},
	{Name: "description", Label: "descrição", Aliases: []string{"descricao", "descrição", "description"}},
	{Name: "supplier", Label: "fornecedor", Aliases: []string{"fornecedor", "supplier", "fabricante"}},
	{Name: "min_stock", Label: "estoque mínimo", Aliases: []string{"estoque_minimo", "estoque mínimo", "estoque minimo", "min_stock"}},
	{Name: "current_stock", Label: "estoque atual", Aliases: []string{"estoque_atual", "estoque atual", "quantidade", "current_stock", "stock"}},
	{Name: "unit_price", Label: "preço", Aliases: []string{"preco", "preço", "preco_unitario", "preço unitário", "valor", "unit_price", "price"}},
	{Name: "unit_of_measure", Label: "unidade", Aliases: []string{"unidade", "unidade_medida", "unit_of_measure", "unit"}},
	{Name: "barcode", Label: "código de barras", Aliases: []string{"codigo_barras", "código de barras", "codigo de barras", "ean", "barcode"}},
	{Name: "is_active", Label: "ativo", Aliases: []string{"ativo", "is_active", "active"}},
}

var productExportColumns = []ExportColumn{
	{Header: "nome", Key: "name"},
	{Header: "categoria", Key: "category"},
	{Header: "descricao", Key: "description"},
	{Header: "fornecedor", Key: "supplier"},
	{Header: "estoque_minimo", Key: "min_stock"},
	{Header: "estoque_atual", Key: "current_stock"},
	{Header: "preco", Key: "unit_price"},
	{Header: "unidade", Key: "unit_of_measure"},
	{Header: "codigo_barras", Key: "barcode"},
	{Header: "ativo", Key: "is_active"},
}

var barcodeConflict = ConflictRule{
	Field:    "barcode",
	Keywords: []string{"barcode", "código de barras", "codigo de barras", "already exists"},
}

// SupplyCategories is the category table of clinic supplies
var SupplyCategories = []normalize.Option{
	{Value: "medical_supply", Label: "Material Médico"},
	{Value: "medication", Label: "Medicamento"},
	{Value: "equipment", Label: "Equipamento"},
	{Value: "cleaning", Label: "Limpeza"},
	{Value: "office", Label: "Escritório"},
	{Value: "ppe", Label: "EPI"},
	{Value: "other", Label: "Outros"},
}

// RetailCategories is the category table of products sold at the front desk
var RetailCategories = []normalize.Option{
	{Value: "skincare", Label: "Dermocosmético"},
	{Value: "cosmetic", Label: "Cosmético"},
	{Value: "supplement", Label: "Suplemento"},
	{Value: "hygiene", Label: "Higiene"},
	{Value: "medication", Label: "Medicamento"},
	{Value: "other", Label: "Outros"},
}

const suppliesTemplate = `nome,categoria,descricao,fornecedor,estoque_minimo,estoque_atual,preco,unidade,codigo_barras,ativo
Luva de procedimento M,Material Médico,Caixa com 100 unidades,Descarpack,10,50,"32,90",caixa,7891234567895,sim
Álcool 70%,Limpeza,Frasco 1L,Asseptgel,5,20,"12,50",frasco,,sim
`

const retailTemplate = `nome,categoria,descricao,fornecedor,estoque_minimo,estoque_atual,preco,unidade,codigo_barras,ativo
Protetor solar FPS 50,Dermocosmético,Toque seco 60g,La Roche-Posay,3,12,"89,90",unidade,7899706123456,sim
Vitamina D 2000UI,Suplemento,60 cápsulas,Sanavita,2,8,"45,00",frasco,,sim
`

// Supplies is the "insumos" entity
var Supplies = &Schema{
	Name:          "insumos",
	DisplayName:   "Insumos",
	Fields:        productFields,
	Categories:    SupplyCategories,
	CreatePath:    "/api/v1/stock/products",
	ListPath:      "/api/v1/stock/products",
	ConflictRules: []ConflictRule{barcodeConflict},
	Template:      suppliesTemplate,
	ExportColumns: productExportColumns,
	normalize:     normalizeProduct,
}

// Retail is the "produtos" entity
var Retail = &Schema{
	Name:          "produtos",
	DisplayName:   "Produtos",
	Fields:        productFields,
	Categories:    RetailCategories,
	CreatePath:    "/api/v1/stock/products",
	ListPath:      "/api/v1/stock/products",
	ConflictRules: []ConflictRule{barcodeConflict},
	Template:      retailTemplate,
	ExportColumns: productExportColumns,
	normalize:     normalizeProduct,
}

func init() {
	register(Supplies, "supplies", "insumo")
	register(Retail, "products", "produto")
}

func normalizeProduct(s *Schema, row types.RawRow, rowIndex int, _ time.Time) Outcome {
	if missing := s.missingRequired(row); len(missing) > 0 {
		return missingFieldsOutcome(rowIndex, missing)
	}

	rawCategory := s.Resolve(row, "category")
	category, ok := normalize.MatchOption(rawCategory, s.Categories)
	if !ok {
		return reject(rowIndex, "%s", normalize.InvalidOptionMessage("Categoria", rawCategory, s.Categories))
	}

	minStock, err := normalize.ParseQuantity(s.Resolve(row, "min_stock"))
	if err != nil {
		return reject(rowIndex, "Estoque mínimo inválido: %v", err)
	}
	currentStock, err := normalize.ParseQuantity(s.Resolve(row, "current_stock"))
	if err != nil {
		return reject(rowIndex, "Estoque atual inválido: %v", err)
	}

	p := &Product{
		Name:          s.Resolve(row, "name"),
		Category:      category,
		Description:   normalize.Optional(s.Resolve(row, "description")),
		Supplier:      normalize.Optional(s.Resolve(row, "supplier")),
		MinStock:      minStock,
		CurrentStock:  currentStock,
		UnitOfMeasure: defaultUnit,
		Barcode:       normalize.Optional(s.Resolve(row, "barcode")),
		IsActive:      true,
	}

	var warnings []string

	if raw := s.Resolve(row, "unit_price"); raw != "" {
		if price, ok := normalize.ParsePrice(raw); ok {
			f, _ := price.Float64()
			p.UnitPrice = &f
		} else {
			log.Debug().Int("row", rowIndex).Str("value", raw).Msg("Dropping unparsable price")
			warnings = append(warnings, types.FormatRowMessage(rowIndex, "preço ignorado: "+raw))
		}
	}

	if unit := s.Resolve(row, "unit_of_measure"); unit != "" {
		p.UnitOfMeasure = unit
	}

	if raw := s.Resolve(row, "is_active"); raw != "" {
		if active, ok := normalize.ParseBool(raw); ok {
			p.IsActive = active
		} else {
			warnings = append(warnings, types.FormatRowMessage(rowIndex, "campo ativo ignorado: "+raw))
		}
	}

	return Outcome{Payload: p, Warnings: warnings}
}
