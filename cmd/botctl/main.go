// ABOUTME: Operator CLI for bot identity management and handshake testing
// ABOUTME: Registers bots, issues challenges, signs them bot-side, and verifies

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/bots"
	"github.com/sparkpit/sparkpit/internal/config"
	"github.com/sparkpit/sparkpit/internal/store"
	"github.com/sparkpit/sparkpit/internal/vault"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Best effort: local development keeps secrets in .env
	_ = godotenv.Load()

	cmd := os.Args[1]
	args := os.Args[2:]

	// sign needs no config or store: it is the bot-side half of the
	// handshake and runs wherever the bot keeps its secret.
	if cmd == "sign" {
		if err := cmdSign(args); err != nil {
			fatal(err)
		}
		return
	}
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	svc, st, err := setup()
	if err != nil {
		fatal(err)
	}
	defer func() { _ = st.Close() }()

	switch cmd {
	case "register":
		err = cmdRegister(svc, args)
	case "challenge":
		err = cmdChallenge(svc, args)
	case "verify":
		err = cmdVerify(svc, args)
	case "handshake":
		err = cmdHandshake(svc, args)
	case "rotate":
		err = cmdRotate(svc, args)
	case "delete":
		err = cmdDelete(svc, args)
	case "show":
		err = cmdShow(st, args)
	case "list":
		err = cmdList(st, args)
	case "audit":
		err = cmdAudit(st, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fatal(err)
	}
}

// setup loads configuration, opens the store, and wires the service.
func setup() (*bots.Service, *store.SQLiteStore, error) {
	configPath := os.Getenv("SPARKPIT_CONFIG")
	if configPath == "" {
		configPath = "sparkpit.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	setupLogging(cfg.Logging)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	v, err := vault.New(cfg.Auth.MasterSecret)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	signer := auth.NewSigner([]byte(cfg.Auth.JWTSecret))
	svc := bots.NewService(st, v, signer, cfg.Handshake.ChallengeTTL, cfg.Handshake.CredentialTTL)
	return svc, st, nil
}

// setupLogging configures slog from the logging config.
func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func cmdRegister(svc *bots.Service, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: botctl register <owner-id> <handle> [name]")
	}
	ownerID, handle := args[0], args[1]
	profile := bots.Profile{}
	if len(args) > 2 {
		profile.Name = strings.Join(args[2:], " ")
	}

	bot, secret, err := svc.Register(context.Background(), ownerID, handle, profile)
	if err != nil {
		return err
	}

	fmt.Printf("Registered bot %s (%s)\n\n", bot.Handle, bot.ID)
	color.Yellow("Secret (shown once, store it now):")
	fmt.Println(secret)
	return nil
}

func cmdChallenge(svc *bots.Service, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: botctl challenge <bot-id> <owner-id>")
	}

	challenge, expiresAt, err := svc.RequestChallenge(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("Challenge:  %s\n", challenge)
	fmt.Printf("Expires at: %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func cmdSign(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: botctl sign <secret> <challenge>")
	}
	fmt.Println(bots.Signature(args[0], args[1]))
	return nil
}

func cmdVerify(svc *bots.Service, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: botctl verify <bot-id> <challenge> <signature> [room:<id>|channel:<id> ...]")
	}

	req := bots.HandshakeRequest{
		BotID:     args[0],
		Challenge: args[1],
		Signature: args[2],
	}
	req.RoomIDs, req.ChannelIDs = parseScopeArgs(args[3:])

	result, err := svc.SubmitHandshake(context.Background(), req)
	if err != nil {
		if bots.IsAuthFailure(err) {
			return fmt.Errorf("handshake failed: %w", err)
		}
		return err
	}

	printCredential(result)
	return nil
}

func cmdHandshake(svc *bots.Service, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: botctl handshake <bot-id> <owner-id> <secret> [room:<id>|channel:<id> ...]")
	}
	botID, ownerID, secret := args[0], args[1], args[2]

	challenge, _, err := svc.RequestChallenge(context.Background(), botID, ownerID)
	if err != nil {
		return err
	}

	req := bots.HandshakeRequest{
		BotID:     botID,
		Challenge: challenge,
		Signature: bots.Signature(secret, challenge),
	}
	req.RoomIDs, req.ChannelIDs = parseScopeArgs(args[3:])

	result, err := svc.SubmitHandshake(context.Background(), req)
	if err != nil {
		if bots.IsAuthFailure(err) {
			return fmt.Errorf("handshake failed: %w", err)
		}
		return err
	}

	color.Green("Handshake verified")
	printCredential(result)
	return nil
}

func cmdRotate(svc *bots.Service, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: botctl rotate <bot-id> <owner-id>")
	}

	secret, err := svc.RotateSecret(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}

	color.Yellow("New secret (shown once, store it now):")
	fmt.Println(secret)
	return nil
}

func cmdDelete(svc *bots.Service, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: botctl delete <bot-id> <owner-id>")
	}

	if err := svc.Delete(context.Background(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Println("Deleted")
	return nil
}

func cmdShow(st *store.SQLiteStore, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: botctl show <handle>")
	}

	bot, err := st.GetBotByHandle(context.Background(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", bot.ID)
	fmt.Fprintf(w, "Handle\t%s\n", bot.Handle)
	fmt.Fprintf(w, "Name\t%s\n", bot.Name)
	fmt.Fprintf(w, "Owner\t%s\n", bot.OwnerID)
	fmt.Fprintf(w, "Status\t%s\n", bot.Status)
	fmt.Fprintf(w, "Secret rotated\t%s\n", bot.SecretRotatedAt.Format(time.RFC3339))
	if bot.VerifiedAt != nil {
		fmt.Fprintf(w, "Last verified\t%s\n", bot.VerifiedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "Last verified\tnever\n")
	}
	return w.Flush()
}

func cmdList(st *store.SQLiteStore, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: botctl list <owner-id>")
	}

	list, err := st.ListBotsByOwner(context.Background(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHANDLE\tSTATUS\tVERIFIED")
	for _, bot := range list {
		verified := "never"
		if bot.VerifiedAt != nil {
			verified = bot.VerifiedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", bot.ID, bot.Handle, bot.Status, verified)
	}
	return w.Flush()
}

func cmdAudit(st *store.SQLiteStore, args []string) error {
	filter := store.AuditFilter{Limit: 50}
	if len(args) > 0 {
		filter.TargetID = &args[0]
	}

	entries, err := st.ListAuditLog(context.Background(), filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tACTION\tTARGET")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s/%s\n",
			e.Timestamp.Format(time.RFC3339),
			e.ActorType, e.ActorID,
			e.Action,
			e.TargetType, e.TargetID,
		)
	}
	return w.Flush()
}

// parseScopeArgs splits trailing room:<id> and channel:<id> arguments.
func parseScopeArgs(args []string) (rooms, channels []string) {
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "room:"):
			rooms = append(rooms, strings.TrimPrefix(arg, "room:"))
		case strings.HasPrefix(arg, "channel:"):
			channels = append(channels, strings.TrimPrefix(arg, "channel:"))
		}
	}
	return rooms, channels
}

func fatal(err error) {
	color.Red("Error: %v", err)
	os.Exit(1)
}

func printCredential(result *bots.HandshakeResult) {
	fmt.Printf("Credential: %s\n", result.Credential)
	fmt.Printf("Expires at: %s\n", result.ExpiresAt.Format(time.RFC3339))
	if rooms := result.Scope.Rooms.IDs(); rooms != nil {
		fmt.Printf("Rooms:      %s\n", strings.Join(rooms, ", "))
	} else {
		fmt.Printf("Rooms:      unrestricted\n")
	}
	if channels := result.Scope.Channels.IDs(); channels != nil {
		fmt.Printf("Channels:   %s\n", strings.Join(channels, ", "))
	} else {
		fmt.Printf("Channels:   unrestricted\n")
	}
}

func printUsage() {
	fmt.Println(`botctl - sparkpit bot identity management

Usage:
  botctl register <owner-id> <handle> [name]   Register a bot (prints the secret once)
  botctl challenge <bot-id> <owner-id>         Issue a handshake challenge
  botctl sign <secret> <challenge>             Compute the handshake signature (bot side)
  botctl verify <bot-id> <challenge> <sig> [room:<id>|channel:<id> ...]
                                               Submit a handshake response
  botctl handshake <bot-id> <owner-id> <secret> [room:<id>|channel:<id> ...]
                                               Run a full handshake locally
  botctl rotate <bot-id> <owner-id>            Rotate a bot's secret
  botctl delete <bot-id> <owner-id>            Delete a bot
  botctl show <handle>                         Show a bot's public record
  botctl list <owner-id>                       List an owner's bots
  botctl audit [bot-id]                        Show recent audit entries

Configuration is read from $SPARKPIT_CONFIG (default: sparkpit.yaml).
A .env file in the working directory is loaded if present.`)
}
