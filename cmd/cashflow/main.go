package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/log"
	"cashflow/internal/security"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	switch os.Args[1] {
	case "calculate":
		runCalculate(logger)
	case "verify":
		runVerify(logger)
	case "overview":
		runOverview(logger)
	case "enqueue":
		runEnqueue(logger)
	case "delete":
		runDelete(logger)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Cash-flow report CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cashflow <command> -user ID")
	fmt.Println("\nCommands:")
	fmt.Println("  calculate  Calculate, sign and store the report of a user")
	fmt.Println("  verify     Verify the stored report of a user against its signature")
	fmt.Println("  overview   Print the stored report with its yearly indicators")
	fmt.Println("  enqueue    Queue a calculation for the worker")
	fmt.Println("  delete     Remove every stored record of a user")
	fmt.Println("  help       Show this help message")
}

func parseUser(name string, logger *log.Logger) uuid.UUID {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	fs.Parse(os.Args[2:])

	if *user == "" {
		logger.Error("Error: -user is required")
		os.Exit(1)
	}
	id, err := uuid.Parse(*user)
	if err != nil {
		logger.Error("Invalid user ID", log.FieldError, err)
		os.Exit(1)
	}
	return id
}

// withApp builds the application, runs fn and exits non-zero when fn fails.
func withApp(logger *log.Logger, fn func(ctx context.Context, app *cli.App) error) {
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	app, err := cli.NewApp(ctx, cfg, logger, alerter(cfg, logger))
	if err != nil {
		logger.Error("Failed to initialize", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	if err := fn(ctx, app); err != nil {
		logger.Error("Command failed", log.FieldError, err)
		app.Close()
		os.Exit(1)
	}
}

// alerter logs security events and, when a broker is configured, also
// publishes them to the security queue.
func alerter(cfg *config.Config, logger *log.Logger) security.Alerter {
	alerters := security.Alerters{security.NewLogAlerter(logger)}
	if cfg.AMQPURL == "" || cfg.AMQPSecurityQueue == "" {
		return alerters
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPSecurityQueue)
	if err != nil {
		logger.Warn("Security events will only be logged", log.FieldError, err)
		return alerters
	}
	return append(alerters, client)
}

func runCalculate(logger *log.Logger) {
	userID := parseUser("calculate", logger)
	withApp(logger, func(ctx context.Context, app *cli.App) error {
		stored, err := app.Reports.CalculateReport(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("Report %s\n", stored.Report.ID)
		fmt.Printf("Months:    %d\n", len(stored.Report.Monthly))
		fmt.Printf("Key:       %s\n", stored.Signature.KeyID)
		fmt.Printf("Signature: %s\n", stored.Signature.SignatureBase64())
		return nil
	})
}

func runVerify(logger *log.Logger) {
	userID := parseUser("verify", logger)
	withApp(logger, func(ctx context.Context, app *cli.App) error {
		ok, err := app.Reports.VerifyReport(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("report of user %s failed verification", userID)
		}
		fmt.Println("Signature valid.")
		return nil
	})
}

func runOverview(logger *log.Logger) {
	userID := parseUser("overview", logger)
	withApp(logger, func(ctx context.Context, app *cli.App) error {
		ov, err := app.Reports.Overview(ctx, userID)
		if err != nil {
			return err
		}
		r := ov.Report
		fmt.Printf("Report %s (verified: %t)\n", r.ID, ov.Verified)
		fmt.Printf("Initial balance %s %s, %d transactions\n\n", r.InitialBalance, r.Currency, r.TransactionsSize)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MONTH\tHIGHEST\tLOWEST\tAVERAGE\tIN\tOUT\tINCOMING\tOUTGOING")
		for _, m := range r.Monthly {
			fmt.Fprintf(w, "%d-%02d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				m.Year, m.Month, m.HighestBalance, m.LowestBalance, m.AverageBalance,
				m.IncomingCount, m.OutgoingCount, m.TotalIncoming(), m.TotalOutgoing())
		}
		w.Flush()

		y := ov.Year
		fmt.Printf("\nWindow %s to %s\n", y.Start.Format("2006-01-02"), y.End.Format("2006-01-02"))
		fmt.Printf("Monthly average income:   %s\n", y.MonthlyAverageIncome)
		fmt.Printf("Monthly average cost:     %s\n", y.MonthlyAverageCost)
		fmt.Printf("Average income per tx:    %s (%d)\n", y.AverageIncomeTransactionAmount, y.IncomingCount)
		fmt.Printf("Average outcome per tx:   %s (%d)\n", y.AverageOutcomeTransactionAmount, y.OutgoingCount)
		fmt.Printf("Recurring income average: %s\n", ov.Recurring.IncomeAverage)
		fmt.Printf("Recurring cost average:   %s\n", ov.Recurring.OutcomeAverage)
		return nil
	})
}

func runEnqueue(logger *log.Logger) {
	userID := parseUser("enqueue", logger)
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to enqueue calculations")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := client.PublishCalculation(ctx, userID)
	if err != nil {
		logger.Error("Failed to enqueue calculation", log.FieldError, err)
		client.Close()
		os.Exit(1)
	}
	fmt.Printf("Queued request %s for user %s\n", req.RequestID, userID)
}

func runDelete(logger *log.Logger) {
	userID := parseUser("delete", logger)
	withApp(logger, func(ctx context.Context, app *cli.App) error {
		if err := app.Reports.DeleteUserData(ctx, userID); err != nil {
			return err
		}
		fmt.Printf("Deleted data of user %s\n", userID)
		return nil
	})
}
