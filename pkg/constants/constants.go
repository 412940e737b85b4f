// Package constants provides shared constants for the credit-simulator application.
package constants

// ReferenceDateLayout is the DD/MM/YYYY layout used for the reference date in
// rendered messages.
const ReferenceDateLayout = "02/01/2006"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPlaces is the number of fractional digits shown for currency
	DecimalPlaces = 2

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencySymbol prefixes every formatted amount
	CurrencySymbol = "R$"
)

// Installment selection limits
const (
	// MaxManualInstallments is the maximum number of manually typed installment counts
	MaxManualInstallments = 5

	// FeeCodeDigits is the zero-padded width of the custom fee code (Cod025)
	FeeCodeDigits = 3

	// MaxCustomFeePercent is the largest custom administration fee accepted, in percent
	MaxCustomFeePercent = 999.0
)

// Reverse calculation variations applied to the desired installment value.
const (
	// LowerInstallmentVariation is the relative change for the smaller suggested installment
	LowerInstallmentVariation = -0.30

	// HigherInstallmentVariation is the relative change for the larger suggested installment
	HigherInstallmentVariation = 0.40
)

// Message fallbacks
const (
	// FallbackNotAvailable replaces missing attendant and credit placeholders
	FallbackNotAvailable = "N/A"

	// FallbackNoDownPayment replaces a missing down payment
	FallbackNoDownPayment = "Nenhuma"

	// FallbackAssetName replaces a missing category name in {NOME_BEM}
	FallbackAssetName = "bem"

	// UnidentifiedUser groups simulations without a display name
	UnidentifiedUser = "Não Identificado"

	// UnspecifiedType groups simulations without a category name
	UnspecifiedType = "Não especificado"
)

// Output format constants
const (
	// OutputFormatMessage renders the configured message template
	OutputFormatMessage = "message"

	// OutputFormatPretty is the human-readable table output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum JSON request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024
)

// Settings keys used by the settings store
const (
	// SettingOutputTemplate holds the message template with escaped newlines
	SettingOutputTemplate = "output_template"

	// SettingSimulationVariables holds the flat rate-table variables
	SettingSimulationVariables = "simulation_variables"
)
