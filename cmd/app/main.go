package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"fleet-dash/internal/config"
	hubservice "fleet-dash/internal/hub-service"
	"fleet-dash/internal/hub-service/core/services"
	livesyncservice "fleet-dash/internal/live-sync-service"
	"fleet-dash/internal/live-sync-service/adapters/driven/token"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/mylogger"
)

const usage = `usage: fleet-dash <command> [flags]

commands:
  dashboard                 track the device and follow drivers in real time
  hub                       run the realtime hub and driver registry
  token  -sub -role -ttl    issue an access token and save it to the token file
  drivers list
  drivers add -name -mobile -password -rc -model [-inactive]
  drivers remove -id`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mylog, err := mylogger.New(cfg.Log.Level, mylogger.FileSink{
		Path:       cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "dashboard":
		mylog.Action("dashboard_started").Info("Fleet dashboard starting up")
		err = livesyncservice.Execute(ctx, mylog, cfg)
	case "hub":
		mylog.Action("hub_started").Info("Fleet hub starting up")
		err = hubservice.Execute(ctx, mylog, cfg)
	case "token":
		err = issueToken(cfg, os.Args[2:])
	case "drivers":
		err = drivers(ctx, mylog, cfg, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		mylog.Error("command failed", err, "command", os.Args[1])
		os.Exit(1)
	}
}

func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sub := fs.String("sub", cfg.App.UserID, "token subject")
	role := fs.String("role", services.RoleOperator, "OPERATOR or DRIVER")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	fs.Parse(args)

	if *sub == "" {
		return fmt.Errorf("-sub is required when FLEET_USER_ID is empty")
	}
	tok, err := services.NewAuthService(cfg.App.JwtSecret).Issue(*sub, *role, *ttl)
	if err != nil {
		return err
	}
	if err := token.NewFileStore(cfg.App.TokenFile, "").Save(tok); err != nil {
		return err
	}
	fmt.Printf("token for %s saved to %s\n", *sub, cfg.App.TokenFile)
	return nil
}

func drivers(ctx context.Context, mylog mylogger.Logger, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("drivers: expected list, add or remove")
	}

	switch args[0] {
	case "list":
		list, err := livesyncservice.ListDrivers(ctx, mylog, cfg)
		if err != nil {
			return err
		}
		return printJSON(list)

	case "add":
		fs := flag.NewFlagSet("drivers add", flag.ExitOnError)
		var form model.RegistrationForm
		fs.StringVar(&form.DriverName, "name", "", "driver name")
		fs.StringVar(&form.MobileNumber, "mobile", "", "mobile number")
		fs.StringVar(&form.Password, "password", "", "password")
		fs.StringVar(&form.VehicleRegistration, "rc", "", "RC book number")
		fs.StringVar(&form.VehicleModel, "model", "", "car model")
		inactive := fs.Bool("inactive", false, "register the driver as inactive")
		fs.Parse(args[1:])
		form.IsActive = !*inactive

		rec, err := livesyncservice.RegisterDriver(ctx, mylog, cfg, form)
		if err != nil {
			return err
		}
		return printJSON(rec)

	case "remove":
		fs := flag.NewFlagSet("drivers remove", flag.ExitOnError)
		id := fs.String("id", "", "driver id")
		fs.Parse(args[1:])
		if err := livesyncservice.RemoveDriver(ctx, mylog, cfg, *id); err != nil {
			return err
		}
		fmt.Printf("driver %s removed\n", *id)
		return nil
	}
	return fmt.Errorf("drivers: unknown subcommand %q", args[0])
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
