// avrpwm calculates ATmega328P timer register values for a Fast PWM
// output. Given a clock, a target frequency and a duty cycle it picks
// the smallest prescaler that fits the counter and prints the register
// writes, or serves the calculation over HTTP/JSON-RPC/WebSocket.
//
// Usage:
//
//	avrpwm -freq 1000 [options]
//	avrpwm -serve [options]
//
// Options:
//
//	-freq float      Target PWM frequency in Hz (required unless -serve)
//	-clock float     System clock in Hz (default 16000000)
//	-duty float      Duty cycle in percent (default 50)
//	-timer int       Timer to use: 0, 1 or 2 (default 1)
//	-board string    Board profile supplying clock and timer (e.g. uno)
//	-config string   Board profile configuration file
//	-json            Print the result as JSON instead of text
//	-code            Print only the generated C fragment
//	-serve           Run the API server instead of a one-shot solve
//	-api string      API server address (default ":8311")
//	-metrics string  Metrics server address ("" disables it)
//	-logfile string  Log file path (default: stderr)
//
// Examples:
//
//	# 1 kHz at 50% on timer 1 of a 16 MHz part
//	avrpwm -freq 1000
//
//	# 25 kHz fan PWM on timer 2 of an 8 MHz Pro Mini
//	avrpwm -board pro-mini-3v3 -timer 2 -freq 25000 -duty 30
//
//	# Serve the calculator with metrics
//	avrpwm -serve -api :8311 -metrics :9311
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avrpwm/pkg/api"
	"avrpwm/pkg/avr"
	"avrpwm/pkg/codegen"
	"avrpwm/pkg/config"
	"avrpwm/pkg/log"
	"avrpwm/pkg/metrics"
	"avrpwm/pkg/pwm"
)

func main() {
	targetHz := flag.Float64("freq", 0, "Target PWM frequency in Hz (required unless -serve)")
	clockHz := flag.Float64("clock", 16e6, "System clock in Hz")
	duty := flag.Float64("duty", 50, "Duty cycle in percent")
	timer := flag.Int("timer", 1, "Timer to use: 0, 1 or 2")
	board := flag.String("board", "", "Board profile supplying clock and timer (e.g. uno)")
	configFile := flag.String("config", "", "Board profile configuration file")
	asJSON := flag.Bool("json", false, "Print the result as JSON instead of text")
	codeOnly := flag.Bool("code", false, "Print only the generated C fragment")
	serve := flag.Bool("serve", false, "Run the API server instead of a one-shot solve")
	apiAddr := flag.String("api", ":8311", "API server address")
	metricsAddr := flag.String("metrics", "", "Metrics server address (empty disables it)")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")

	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		base := log.New("avrpwm")
		log.ConfigureFromEnv(base)
		base.SetWriter(f)
		base.SetColorize(false)
		log.SetDefaultLogger(base)
	}
	logger := log.GetLogger("avrpwm")

	profiles, err := loadProfiles(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading profiles: %v\n", err)
		os.Exit(1)
	}

	if *serve {
		runServer(logger, profiles, *apiAddr, *metricsAddr)
		return
	}

	if *targetHz == 0 {
		fmt.Fprintf(os.Stderr, "Error: -freq is required\n")
		flag.Usage()
		os.Exit(1)
	}

	req, err := buildRequest(profiles, *board, *clockHz, *targetHz, *duty, *timer, flagsSet())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := pwm.Solve(req)
	result := out.Result()

	switch {
	case *codeOnly:
		if !out.Achievable() {
			fmt.Fprintf(os.Stderr, "Error: %s\n", result.Error)
			os.Exit(1)
		}
		fmt.Print(codegen.C(out))

	case *asJSON:
		printJSON(result)

	default:
		printText(req, out)
	}

	if !out.Achievable() {
		os.Exit(1)
	}
}

// loadProfiles reads the profile file when given, built-ins otherwise.
func loadProfiles(path string) (*config.Profiles, error) {
	if path == "" {
		return config.DefaultProfiles(), nil
	}
	return config.LoadProfiles(path)
}

// flagsSet reports which flags were given on the command line, so a
// board profile only fills in values the user did not set explicitly.
func flagsSet() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// buildRequest merges board profile values with the explicit flags.
func buildRequest(profiles *config.Profiles, boardName string,
	clockHz, targetHz, duty float64, timer int, set map[string]bool) (pwm.Request, error) {

	req := pwm.Request{
		ClockHz:     clockHz,
		TargetHz:    targetHz,
		DutyPercent: duty,
		Timer:       avr.Timer(timer),
	}

	if boardName != "" {
		board, err := profiles.Board(boardName)
		if err != nil {
			return req, err
		}
		if !set["clock"] {
			req.ClockHz = board.ClockHz
		}
		if !set["timer"] {
			req.Timer = board.Timer
		}
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func printJSON(result pwm.Result) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}

// printText renders the result as a human readable table followed by
// the C fragment.
func printText(req pwm.Request, out pwm.Outcome) {
	result := out.Result()

	pin := req.Timer.Pin()
	fmt.Printf("Timer:            %s (%s, pin %s/D%d)\n",
		req.Timer, timerWidth(req.Timer), pin.Name, pin.Arduino)
	fmt.Printf("Clock:            %.6g Hz\n", req.ClockHz)
	fmt.Printf("Requested:        %.6g Hz at %.4g%%\n", req.TargetHz, req.DutyPercent)

	if !out.Achievable() {
		fmt.Printf("Result:           unachievable (%s)\n", result.Error)
		return
	}

	fmt.Printf("Prescaler:        %d\n", result.Prescaler)
	fmt.Printf("TOP:              %d\n", result.Top)
	fmt.Printf("OCR:              %d\n", result.OCR)
	fmt.Printf("Actual:           %.6g Hz at %.4g%%\n", result.ActualFrequency, result.ActualDutyCycle)
	fmt.Println()
	for _, reg := range result.Registers {
		fmt.Printf("  %-6s = %-6s  %s\n", reg.Name, reg.Value, reg.Description)
	}
	fmt.Println()
	fmt.Print(codegen.C(out))
}

func timerWidth(t avr.Timer) string {
	if t.Is16Bit() {
		return "16-bit"
	}
	return "8-bit"
}

// runServer starts the API server and blocks until SIGINT or SIGTERM.
func runServer(logger *log.Logger, profiles *config.Profiles, apiAddr, metricsAddr string) {
	cm := metrics.Global()

	server := api.New(api.Config{
		Addr:     apiAddr,
		Profiles: profiles,
		Metrics:  cm,
	})

	var metricsServer *metrics.Server
	if metricsAddr != "" {
		metricsServer = metrics.NewServer(cm, metricsAddr)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received %v, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("API server: %v", err)
		}
	}

	if err := server.Stop(); err != nil {
		logger.Warn("API server stop: %v", err)
	}
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Warn("metrics server stop: %v", err)
		}
	}
}
