// Package simulation computes installment quotes from a credit value, a rate
// table category, an optional down payment, and a set of installment counts.
package simulation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/credit-simulator/internal/installments"
	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/financing"
	"github.com/iwvelando/credit-simulator/pkg/format"
	"github.com/iwvelando/credit-simulator/pkg/mathutil"
	"github.com/iwvelando/credit-simulator/pkg/validation"
	"go.uber.org/zap"
)

// Input carries the raw, user-typed values of a simulation request.
type Input struct {
	CategoryKey      string                 `json:"categoryKey"`
	CreditValueRaw   string                 `json:"creditValue"`
	DownPaymentRaw   string                 `json:"downPayment,omitempty"`
	CustomFeePercent string                 `json:"customFee,omitempty"`
	Selection        installments.Selection `json:"selection"`
}

// Plan is one installment option of a result.
type Plan struct {
	Count        int     `json:"count"`
	Value        float64 `json:"value"`
	ValueDisplay string  `json:"valueDisplay"`

	// Set only by CalculateByInstallment.
	EstimatedCredit        float64 `json:"estimatedCredit,omitempty"`
	EstimatedCreditDisplay string  `json:"estimatedCreditDisplay,omitempty"`
}

// Variation is an alternative installment suggested by CalculateByInstallment.
type Variation struct {
	Label                  string  `json:"label"`
	Count                  int     `json:"count"`
	Installment            float64 `json:"installment"`
	InstallmentDisplay     string  `json:"installmentDisplay"`
	EstimatedCredit        float64 `json:"estimatedCredit"`
	EstimatedCreditDisplay string  `json:"estimatedCreditDisplay"`
}

// Result is the outcome of a simulation. It is never mutated after it is
// returned.
type Result struct {
	CategoryKey         string      `json:"categoryKey"`
	CategoryName        string      `json:"categoryName"`
	CreditValueOriginal float64     `json:"creditValue"`
	CreditValueDisplay  string      `json:"creditValueDisplay"`
	DownPaymentValue    float64     `json:"downPayment"`
	DownPaymentDisplay  string      `json:"downPaymentDisplay,omitempty"`
	InstallmentPlans    []Plan      `json:"installmentPlans"`
	FeeCodeLabel        string      `json:"feeCodeLabel"`
	CustomFeePercent    string      `json:"customFeePercent,omitempty"`
	AnnualUnit          bool        `json:"annualUnit"`
	EffectiveFeeRate    float64     `json:"effectiveFeeRate"`
	Balance             float64     `json:"balance"`
	ByInstallment       bool        `json:"byInstallment,omitempty"`
	Variations          []Variation `json:"variations,omitempty"`
}

// Counts returns the installment counts of the result in plan order.
func (r Result) Counts() []int {
	counts := make([]int, len(r.InstallmentPlans))
	for i, plan := range r.InstallmentPlans {
		counts[i] = plan.Count
	}
	return counts
}

// Validation fields and messages for the amount being simulated.
const (
	fieldCreditValue          = "creditValue"
	fieldInstallmentValue     = "installmentValue"
	messageInvalidCredit      = "invalid credit value"
	messageInvalidInstallment = "invalid installment value"
)

// Calculator runs simulations. The zero value computes forward quotes only.
type Calculator struct {
	Logger             *zap.Logger
	ReverseCalculation bool
}

// Calculate is shorthand for a zero Calculator's Calculate.
func Calculate(table *rates.Table, input Input) (Result, error) {
	return Calculator{}.Calculate(table, input)
}

// Calculate converts the credit value into one installment per resolved count:
// value = (credit × (1 + fee + reserve fund) + credit × insurance − down payment) / count.
func (c Calculator) Calculate(table *rates.Table, input Input) (Result, error) {
	logger := c.logger()

	q, err := prepare(table, input, fieldCreditValue, messageInvalidCredit)
	if err != nil {
		return Result{}, err
	}
	credit := q.amount

	total := financing.AdjustedTotal(credit, q.fees)
	balance := financing.Balance(total, q.downPayment)
	if !mathutil.IsFinite(total) || !mathutil.IsFinite(balance) {
		return Result{}, validation.NewValidationError(fieldCreditValue, messageInvalidCredit)
	}
	if balance <= 0 {
		logger.Warn("down payment covers the whole financed amount",
			zap.String("op", "simulation.Calculate"),
			zap.String("category", q.key),
			zap.Float64("total", total),
			zap.Float64("downPayment", q.downPayment),
		)
	}

	plans := make([]Plan, 0, len(q.counts))
	for _, count := range q.counts {
		value := financing.InstallmentValue(balance, count)
		if !mathutil.IsFinite(value) {
			return Result{}, validation.NewValidationError(fieldCreditValue, messageInvalidCredit)
		}
		plans = append(plans, Plan{
			Count:        count,
			Value:        value,
			ValueDisplay: format.Currency(value),
		})
	}

	result := q.result()
	result.CreditValueOriginal = credit
	result.CreditValueDisplay = format.Currency(credit)
	result.Balance = balance
	result.InstallmentPlans = plans
	return result, nil
}

// CalculateByInstallment treats the raw credit value as the desired
// installment and estimates the credit it buys for each count. A single count
// also yields a smaller and a larger installment variation.
func (c Calculator) CalculateByInstallment(table *rates.Table, input Input) (Result, error) {
	if !c.ReverseCalculation {
		return Result{}, validation.NewConfigurationError("calculation by installment value is disabled", nil)
	}

	q, err := prepare(table, input, fieldInstallmentValue, messageInvalidInstallment)
	if err != nil {
		return Result{}, err
	}
	installment := q.amount

	plans := make([]Plan, 0, len(q.counts))
	for _, count := range q.counts {
		credit := financing.CreditFromInstallment(installment, count, q.fees)
		if !mathutil.IsFinite(credit) {
			return Result{}, validation.NewValidationError(fieldInstallmentValue, messageInvalidInstallment)
		}
		plans = append(plans, Plan{
			Count:                  count,
			Value:                  installment,
			ValueDisplay:           format.Currency(installment),
			EstimatedCredit:        credit,
			EstimatedCreditDisplay: format.Currency(credit),
		})
	}

	var variations []Variation
	if len(q.counts) == 1 {
		for _, v := range financing.InstallmentVariations(installment, q.counts[0], q.fees) {
			if !mathutil.IsFinite(v.Installment) || !mathutil.IsFinite(v.Credit) {
				return Result{}, validation.NewValidationError(fieldInstallmentValue, messageInvalidInstallment)
			}
			variations = append(variations, Variation{
				Label:                  v.Label,
				Count:                  v.Count,
				Installment:            v.Installment,
				InstallmentDisplay:     format.Currency(v.Installment),
				EstimatedCredit:        v.Credit,
				EstimatedCreditDisplay: format.Currency(v.Credit),
			})
		}
	}

	c.logger().Debug("calculated by installment value",
		zap.String("op", "simulation.CalculateByInstallment"),
		zap.String("category", q.key),
		zap.Int("plans", len(plans)),
	)

	result := q.result()
	result.CreditValueOriginal = plans[0].EstimatedCredit
	result.CreditValueDisplay = plans[0].EstimatedCreditDisplay
	result.InstallmentPlans = plans
	result.ByInstallment = true
	result.Variations = variations
	return result, nil
}

// FeeCodeLabel returns "(CodNNN)" for custom-rate categories with a parsable
// percent no larger than constants.MaxCustomFeePercent, "(code)" for
// categories with a fixed code, and "" otherwise.
func FeeCodeLabel(entry rates.Entry, customFeePercent string) string {
	if entry.CustomRate() {
		if percent, ok := format.ParseLeadingFloat(customFeePercent); ok && percent > 0 && percent <= constants.MaxCustomFeePercent {
			return fmt.Sprintf("(Cod%0*d)", constants.FeeCodeDigits, int(percent))
		}
	}
	if entry.Code != "" {
		return "(" + entry.Code + ")"
	}
	return ""
}

func (c Calculator) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// quote holds everything resolved before the per-count arithmetic.
type quote struct {
	key          string
	entry        rates.Entry
	amount       float64
	fees         financing.Fees
	customFee    string
	counts       []int
	downPayment  float64
	downDisplay  string
	feeCodeLabel string
}

func prepare(table *rates.Table, input Input, amountField, amountMessage string) (quote, error) {
	if table.Len() == 0 {
		return quote{}, validation.NewConfigurationError("rate table is not loaded", nil)
	}
	key := strings.TrimSpace(input.CategoryKey)
	category, ok := table.Lookup(key)
	if !ok {
		return quote{}, validation.NewConfigurationError(fmt.Sprintf("unknown category %q", key), nil)
	}
	entry := category.Entry

	if err := installments.CheckSelection(input.Selection); err != nil {
		return quote{}, err
	}

	amount, ok := format.ParseLocalizedDecimal(input.CreditValueRaw)
	if !ok || !mathutil.IsFinite(amount) || amount <= 0 {
		return quote{}, validation.NewValidationError(amountField, amountMessage)
	}

	q := quote{
		key:    key,
		entry:  entry,
		amount: amount,
		fees: financing.Fees{
			ReserveFund: entry.ReserveFundRate,
			Insurance:   entry.InsuranceRate,
		},
	}

	if entry.CustomRate() {
		percent, ok := format.ParseLeadingFloat(input.CustomFeePercent)
		if !ok || !mathutil.IsFinite(percent) || percent <= 0 || percent > constants.MaxCustomFeePercent {
			return quote{}, validation.NewValidationError("customFee", "fee required")
		}
		q.fees.Admin = mathutil.PercentToFraction(percent)
		q.customFee = strings.TrimSpace(input.CustomFeePercent)
	} else {
		q.fees.Admin = *entry.AdminFeeRate
	}

	counts, err := installments.Resolve(input.Selection, category.Options, entry.AnnualUnit)
	if err != nil {
		return quote{}, err
	}
	q.counts = counts

	if down, ok := format.ParseLocalizedDecimal(input.DownPaymentRaw); ok && mathutil.IsFinite(down) && down > 0 {
		q.downPayment = down
		q.downDisplay = format.Currency(down)
	}

	q.feeCodeLabel = FeeCodeLabel(entry, input.CustomFeePercent)
	return q, nil
}

func (q quote) result() Result {
	return Result{
		CategoryKey:        q.key,
		CategoryName:       q.entry.Name,
		DownPaymentValue:   q.downPayment,
		DownPaymentDisplay: q.downDisplay,
		FeeCodeLabel:       q.feeCodeLabel,
		CustomFeePercent:   q.customFee,
		AnnualUnit:         q.entry.AnnualUnit,
		EffectiveFeeRate:   q.fees.Admin,
	}
}
