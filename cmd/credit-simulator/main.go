package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iwvelando/credit-simulator/internal/app"
	"github.com/iwvelando/credit-simulator/internal/config"
	"github.com/iwvelando/credit-simulator/internal/installments"
	"github.com/iwvelando/credit-simulator/internal/logging"
	"github.com/iwvelando/credit-simulator/internal/simulation"
	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/output"
	"github.com/iwvelando/credit-simulator/pkg/validation"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file with secrets")
	category := flag.String("category", "", "rate table category key (auto, imovel, ...)")
	credit := flag.String("credit", "", "credit value, or desired installment with -by-installment (e.g. 50.000,00)")
	downPayment := flag.String("down", "", "optional down payment")
	customFee := flag.String("fee", "", "administration fee percent for custom-rate categories")
	preset := flag.String("preset", "", "installment bundle value (e.g. \"12x 24x 36x\")")
	manual := flag.String("manual", "", "comma-separated installment counts (up to 5)")
	byInstallment := flag.Bool("by-installment", false, "treat -credit as the desired installment")
	user := flag.String("user", "", "attendant display name")
	company := flag.String("company", "", "attendant company")
	save := flag.Bool("save", false, "store the simulation in the configured storage")
	send := flag.Bool("send", false, "deliver the rendered message through the configured channel")
	outputFormatFlag := flag.String("output-format", "", "type of output override: message, pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Load the config file to get logging configuration
	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatMessage
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(), zap.String("op", "main"))
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning, zap.String("op", "main"))
	}

	secrets, err := config.LoadSecrets(*envFile)
	if err != nil {
		logger.Fatal("failed to load secrets", zap.String("op", "main"), zap.Error(err))
	}

	if *byInstallment {
		conf.Features.ReverseCalculation = true
	}

	ctx := context.Background()
	application, err := app.New(ctx, conf, secrets, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.String("op", "main"), zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("failed to release resources", zap.String("op", "main"), zap.Error(err))
		}
	}()

	snapshot, err := application.Settings.Snapshot(ctx)
	if err != nil {
		logger.Fatal("failed to load settings", zap.String("op", "main"), zap.Error(err))
	}

	input := simulation.Input{
		CategoryKey:      *category,
		CreditValueRaw:   *credit,
		DownPaymentRaw:   *downPayment,
		CustomFeePercent: *customFee,
		Selection:        selectionFromFlags(*preset, *manual),
	}

	var result simulation.Result
	if *byInstallment {
		result, err = application.Calculator.CalculateByInstallment(snapshot.Table, input)
	} else {
		result, err = application.Calculator.Calculate(snapshot.Table, input)
	}
	if err != nil {
		if validation.IsValidation(err) {
			fmt.Fprintf(os.Stderr, "invalid input: %v\n", err)
			os.Exit(2)
		}
		logger.Fatal("failed to calculate simulation",
			zap.String("op", "main"),
			zap.String("category", *category),
			zap.Error(err),
		)
	}

	if *save {
		record, err := application.Repository.SaveSimulation(ctx, storage.NewRecord(result, *user, *company, time.Now()))
		if err != nil {
			logger.Fatal("failed to save simulation", zap.String("op", "main"), zap.Error(err))
		}
		logger.Info("simulation saved", zap.String("op", "main"), zap.String("id", record.ID))
	}

	if *send {
		text := application.Renderer.Render(&result, snapshot.Template, snapshot.Table, *user, *company, false)
		if err := application.Sender.Send(ctx, text); err != nil {
			logger.Fatal("failed to send message", zap.String("op", "main"), zap.Error(err))
		}
	}

	// Handle output.
	switch outputFormat {
	case constants.OutputFormatMessage:
		fmt.Println(application.Renderer.Render(&result, snapshot.Template, snapshot.Table, *user, *company, true))
	case constants.OutputFormatPretty:
		output.PrettyFormat(os.Stdout, result)
	case constants.OutputFormatCSV:
		output.CsvFormat(os.Stdout, result)
	}
}

// selectionFromFlags prefers manual counts over a preset bundle.
func selectionFromFlags(preset, manual string) installments.Selection {
	if strings.TrimSpace(manual) != "" {
		return installments.Selection{
			Mode:   installments.ModeManual,
			Manual: strings.Split(manual, ","),
		}
	}
	if strings.TrimSpace(preset) != "" {
		return installments.Selection{Mode: installments.ModePreset, Preset: preset}
	}
	return installments.Selection{}
}
