// Package message renders simulation results through a placeholder template
// into text for the messaging channel and the clipboard.
package message

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/internal/simulation"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/datetime"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Recognized placeholders.
const (
	PlaceholderSimulationType = "{TIPO_SIMULACAO}"
	PlaceholderFeeCode        = "{CODIGO_TAXA}"
	PlaceholderReferenceDate  = "{DATA_REFERENCIA}"
	PlaceholderAttendant      = "{USUARIO_ATENDIMENTO}"
	PlaceholderCompany        = "{EMPRESA_ATENDIMENTO}"
	PlaceholderAssetName      = "{NOME_BEM}"
	PlaceholderCreditValue    = "{VALOR_CREDITO}"
	PlaceholderDownPayment    = "{ENTRADA_SUGERIDA}"
	PlaceholderInstallments   = "{LISTA_PARCELAS}"
)

// Placeholders lists every placeholder Render substitutes.
var Placeholders = []string{
	PlaceholderSimulationType,
	PlaceholderFeeCode,
	PlaceholderReferenceDate,
	PlaceholderAttendant,
	PlaceholderCompany,
	PlaceholderAssetName,
	PlaceholderCreditValue,
	PlaceholderDownPayment,
	PlaceholderInstallments,
}

// DefaultTemplate is used until an administrator stores a template.
const DefaultTemplate = `*SIMULAÇÃO {TIPO_SIMULACAO}* {CODIGO_TAXA}
_Data de referência: {DATA_REFERENCIA}_

*Crédito:* {VALOR_CREDITO}
*Entrada sugerida:* {ENTRADA_SUGERIDA}

*Parcelas do {NOME_BEM}:*
{LISTA_PARCELAS}

Atendimento: {USUARIO_ATENDIMENTO} ({EMPRESA_ATENDIMENTO})`

// Renderer substitutes placeholders. The zero value uses the local wall clock
// and "\n" line endings.
type Renderer struct {
	Now                 func() time.Time
	Location            *time.Location
	PlainTextLineEnding string
}

// Render fills template with result. It returns "" when result is nil, the
// template is empty, or the rate table is empty. Unknown placeholders are left
// untouched.
func (r Renderer) Render(result *simulation.Result, template string, table *rates.Table,
	userDisplayName, userCompany string, forPlainText bool) string {
	if result == nil || strings.TrimSpace(template) == "" || table.Len() == 0 {
		return ""
	}

	assetName := constants.FallbackAssetName
	annual := result.AnnualUnit
	if category, ok := table.Lookup(result.CategoryKey); ok {
		if category.Entry.Name != "" {
			assetName = cases.Lower(language.BrazilianPortuguese).String(category.Entry.Name)
		}
		annual = annual || category.Entry.AnnualUnit
	}

	replacer := strings.NewReplacer(
		PlaceholderSimulationType, cases.Upper(language.BrazilianPortuguese).String(result.CategoryName),
		PlaceholderFeeCode, result.FeeCodeLabel,
		PlaceholderReferenceDate, datetime.ReferenceDate(r.now(), r.Location),
		PlaceholderAttendant, orFallback(userDisplayName, constants.FallbackNotAvailable),
		PlaceholderCompany, orFallback(userCompany, constants.FallbackNotAvailable),
		PlaceholderAssetName, assetName,
		PlaceholderCreditValue, orFallback(result.CreditValueDisplay, constants.FallbackNotAvailable),
		PlaceholderDownPayment, orFallback(result.DownPaymentDisplay, constants.FallbackNoDownPayment),
		PlaceholderInstallments, InstallmentList(result.InstallmentPlans, annual),
	)
	text := replacer.Replace(Unescape(template))

	if forPlainText && r.PlainTextLineEnding != "" && r.PlainTextLineEnding != "\n" {
		text = strings.ReplaceAll(text, "\n", r.PlainTextLineEnding)
	}
	return text
}

// InstallmentList renders one line per plan in ascending count order. Annual
// plans are shown in years ("2x de R$ 1.200,00"), the rest in installments
// ("• 12× de R$ 1.083,33").
func InstallmentList(plans []simulation.Plan, annual bool) string {
	sorted := make([]simulation.Plan, len(plans))
	copy(sorted, plans)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count < sorted[j].Count })

	var builder strings.Builder
	for _, plan := range sorted {
		if annual {
			fmt.Fprintf(&builder, "%dx de %s", plan.Count/constants.MonthsPerYear, plan.ValueDisplay)
		} else {
			fmt.Fprintf(&builder, "• %d× de %s", plan.Count, plan.ValueDisplay)
		}
		if plan.EstimatedCreditDisplay != "" {
			fmt.Fprintf(&builder, " (crédito estimado: %s)", plan.EstimatedCreditDisplay)
		}
		builder.WriteByte('\n')
	}
	return strings.TrimSpace(builder.String())
}

// Unescape turns stored two-character "\n" sequences into line breaks.
func Unescape(template string) string {
	return strings.ReplaceAll(template, `\n`, "\n")
}

// Escape turns line breaks into two-character "\n" sequences for storage.
func Escape(template string) string {
	return strings.ReplaceAll(strings.ReplaceAll(template, "\r\n", "\n"), "\n", `\n`)
}

func (r Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func orFallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
