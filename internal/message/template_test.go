package message

import (
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/credit-simulator/internal/installments"
	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/internal/simulation"
)

var fixedNow = func() time.Time { return time.Date(2024, time.March, 5, 15, 4, 0, 0, time.UTC) }

func calculate(t *testing.T, input simulation.Input) *simulation.Result {
	t.Helper()
	result, err := simulation.Calculate(rates.DefaultTable(), input)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	return &result
}

func TestRender(t *testing.T) {
	renderer := Renderer{Now: fixedNow}
	table := rates.DefaultTable()

	tests := []struct {
		name     string
		input    simulation.Input
		template string
		user     string
		company  string
		want     string
	}{
		{
			name: "fixed fee with attendant",
			input: simulation.Input{
				CategoryKey:    "auto",
				CreditValueRaw: "10.000",
				Selection:      installments.Selection{Mode: installments.ModePreset, Preset: "24x 12x"},
			},
			template: `{TIPO_SIMULACAO} {CODIGO_TAXA} {DATA_REFERENCIA}\n{NOME_BEM}: {VALOR_CREDITO} / {ENTRADA_SUGERIDA}\n{LISTA_PARCELAS}\n{USUARIO_ATENDIMENTO} - {EMPRESA_ATENDIMENTO}`,
			user:     "Ana",
			company:  "Acme",
			want: "AUTOMÓVEL (030) 05/03/2024\n" +
				"automóvel: R$ 10.000,00 / Nenhuma\n" +
				"• 12× de R$ 1.083,33\n" +
				"• 24× de R$ 541,67\n" +
				"Ana - Acme",
		},
		{
			name: "annual shows years",
			input: simulation.Input{
				CategoryKey:      "anual",
				CreditValueRaw:   "24.000",
				CustomFeePercent: "20",
				Selection:        installments.Selection{Mode: installments.ModePreset, Preset: "24x 48x 72x"},
			},
			template: "{LISTA_PARCELAS}",
			want:     "2x de R$ 1.200,00\n4x de R$ 600,00\n6x de R$ 400,00",
		},
		{
			name: "fallbacks for attendant and company",
			input: simulation.Input{
				CategoryKey:    "imovel",
				CreditValueRaw: "1.000",
				DownPaymentRaw: "100",
				Selection:      installments.Selection{Mode: installments.ModeManual, Manual: []string{"10"}},
			},
			template: "{USUARIO_ATENDIMENTO}|{EMPRESA_ATENDIMENTO}|{ENTRADA_SUGERIDA}|{NOME_BEM}",
			want:     "N/A|N/A|R$ 100,00|imóvel",
		},
		{
			name: "unknown placeholders untouched",
			input: simulation.Input{
				CategoryKey:    "auto",
				CreditValueRaw: "1.000",
				Selection:      installments.Selection{Mode: installments.ModeManual, Manual: []string{"10"}},
			},
			template: "{OUTRO} {CODIGO_TAXA}",
			want:     "{OUTRO} (030)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderer.Render(calculate(t, tt.input), tt.template, table, tt.user, tt.company, false)
			if got != tt.want {
				t.Errorf("Render() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRenderLeavesNoRecognizedPlaceholder(t *testing.T) {
	result := calculate(t, simulation.Input{
		CategoryKey:      "taxa",
		CreditValueRaw:   "50.000",
		CustomFeePercent: "18,5",
		Selection:        installments.Selection{Mode: installments.ModePreset, Preset: "12x 24x 36x"},
	})

	got := Renderer{Now: fixedNow}.Render(result, DefaultTemplate, rates.DefaultTable(), "", "", false)
	if got == "" {
		t.Fatal("Render() returned empty text")
	}
	for _, placeholder := range Placeholders {
		if strings.Contains(got, placeholder) {
			t.Errorf("placeholder %s left in output:\n%s", placeholder, got)
		}
	}
	if !strings.Contains(got, "(Cod018)") {
		t.Errorf("expected custom fee code in output:\n%s", got)
	}
}

func TestRenderMissingInputs(t *testing.T) {
	result := calculate(t, simulation.Input{
		CategoryKey:    "auto",
		CreditValueRaw: "1.000",
		Selection:      installments.Selection{Mode: installments.ModeManual, Manual: []string{"10"}},
	})
	empty, _ := rates.NewTable(nil)

	tests := []struct {
		name     string
		result   *simulation.Result
		template string
		table    *rates.Table
	}{
		{name: "nil result", result: nil, template: DefaultTemplate, table: rates.DefaultTable()},
		{name: "empty template", result: result, template: "  ", table: rates.DefaultTable()},
		{name: "nil table", result: result, template: DefaultTemplate, table: nil},
		{name: "empty table", result: result, template: DefaultTemplate, table: empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Renderer{}).Render(tt.result, tt.template, tt.table, "a", "b", false); got != "" {
				t.Errorf("Render() = %q, want empty", got)
			}
		})
	}
}

func TestRenderPlainTextLineEnding(t *testing.T) {
	result := calculate(t, simulation.Input{
		CategoryKey:    "auto",
		CreditValueRaw: "1.000",
		Selection:      installments.Selection{Mode: installments.ModeManual, Manual: []string{"10", "20"}},
	})
	renderer := Renderer{Now: fixedNow, PlainTextLineEnding: "\r\n"}

	plain := renderer.Render(result, "{LISTA_PARCELAS}", rates.DefaultTable(), "", "", true)
	if plain != "• 10× de R$ 130,00\r\n• 20× de R$ 65,00" {
		t.Errorf("plain text = %q", plain)
	}
	channel := renderer.Render(result, "{LISTA_PARCELAS}", rates.DefaultTable(), "", "", false)
	if channel != "• 10× de R$ 130,00\n• 20× de R$ 65,00" {
		t.Errorf("channel text = %q", channel)
	}
}

func TestRenderReferenceDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	renderer := Renderer{
		Now:      func() time.Time { return time.Date(2024, time.March, 6, 1, 0, 0, 0, time.UTC) },
		Location: loc,
	}
	result := calculate(t, simulation.Input{
		CategoryKey:    "auto",
		CreditValueRaw: "1.000",
		Selection:      installments.Selection{Mode: installments.ModeManual, Manual: []string{"10"}},
	})

	if got := renderer.Render(result, "{DATA_REFERENCIA}", rates.DefaultTable(), "", "", false); got != "05/03/2024" {
		t.Errorf("reference date = %q, want 05/03/2024", got)
	}
}

func TestInstallmentListWithEstimates(t *testing.T) {
	plans := []simulation.Plan{
		{Count: 20, ValueDisplay: "R$ 1.300,00", EstimatedCreditDisplay: "R$ 20.000,00"},
		{Count: 10, ValueDisplay: "R$ 1.300,00", EstimatedCreditDisplay: "R$ 10.000,00"},
	}
	want := "• 10× de R$ 1.300,00 (crédito estimado: R$ 10.000,00)\n• 20× de R$ 1.300,00 (crédito estimado: R$ 20.000,00)"
	if got := InstallmentList(plans, false); got != want {
		t.Errorf("InstallmentList() = %q, want %q", got, want)
	}
	if InstallmentList(nil, false) != "" {
		t.Error("empty plan list should render empty")
	}
}

func TestEscapeUnescape(t *testing.T) {
	raw := "linha 1\nlinha 2\r\nlinha 3"
	escaped := Escape(raw)
	if escaped != `linha 1\nlinha 2\nlinha 3` {
		t.Errorf("Escape() = %q", escaped)
	}
	if got := Unescape(escaped); got != "linha 1\nlinha 2\nlinha 3" {
		t.Errorf("Unescape() = %q", got)
	}
}
