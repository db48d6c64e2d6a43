package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dougsko/scumcal/pkg/auth"
	"github.com/dougsko/scumcal/pkg/client"
	"github.com/dougsko/scumcal/pkg/config"
)

var (
	socketPath = flag.String("socket", "/tmp/scumcal.sock", "Unix socket path")
	command    = flag.String("cmd", "", "Command to send (e.g., 'STATUS', 'PLAN:18:rx:5')")
	configPath = flag.String("config", "", "Configuration file used by the token command")
	subject    = flag.String("sub", "operator", "Token subject")
	ttl        = flag.Duration("ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
	readOnly   = flag.Bool("read-only", false, "Issue a token without the control scope")
)

func main() {
	flag.Parse()

	if *command == "" {
		if len(flag.Args()) > 0 {
			*command = strings.Join(flag.Args(), " ")
		} else {
			showHelp()
			return
		}
	}

	if strings.EqualFold(*command, "token") {
		if err := issueToken(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	client := client.NewSocketClient(*socketPath)

	response, err := client.SendCommand(*command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", response.String())
	if !response.Success {
		os.Exit(1)
	}
}

// issueToken prints an API token signed with the daemon's auth secret
func issueToken() error {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if secret := os.Getenv("SCUMCAL_AUTH_SECRET"); secret != "" {
		cfg.Web.AuthSecret = secret
	}

	verifier, err := auth.NewVerifier(cfg.Web.AuthSecret)
	if err != nil {
		return fmt.Errorf("no auth secret configured: %w", err)
	}

	scopes := []string{auth.ScopeRead}
	if !*readOnly {
		scopes = append(scopes, auth.ScopeControl)
	}

	token, err := verifier.Issue(*subject, scopes, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func showHelp() {
	fmt.Println("scumctl - SCuM Calibration Daemon Control Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options] <command>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -socket <path>    Unix socket path (default: /tmp/scumcal.sock)")
	fmt.Println("  -cmd <command>    Command to send")
	fmt.Println("  -config <path>    Configuration file (token command)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  STATUS                    Get calibration status")
	fmt.Println("  CHANNELS                  Get every channel's codes")
	fmt.Println("  CHANNEL:<n>               Get one channel's codes")
	fmt.Println("  EVENTS                    Get recent events")
	fmt.Println("  EVENTS:10                 Get last 10 events")
	fmt.Println("  EVENTS:kind:milestone:5   Get last 5 events of one kind")
	fmt.Println("  PLAN:<n>:<rx|tx>[:limit]  List a channel's sweep candidates")
	fmt.Println("  RECALIBRATE               Start a new calibration session")
	fmt.Println("  FEEDBACK:<on|off>         Toggle IF feedback")
	fmt.Println("  PING                      Test connection")
	fmt.Println("  token                     Print an API token for the web interface")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s STATUS\n", os.Args[0])
	fmt.Printf("  %s PLAN:18:tx:5\n", os.Args[0])
	fmt.Printf("  %s -config config.yaml -read-only token\n", os.Args[0])
	fmt.Printf("  echo 'STATUS' | nc -U /tmp/scumcal.sock\n")
}
