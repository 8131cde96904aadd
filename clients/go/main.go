// hushctl - command line client for the Hush encrypted-notes relay
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamin-groot/hush-starknet/clients/go/hush"
	"github.com/jamin-groot/hush-starknet/clients/go/hush/chain"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("HUSH_URL")
	client := hush.NewClient(baseURL)
	ctx := context.Background()
	cmd := os.Args[1]

	switch cmd {
	case "register":
		wallet := requireWallet()
		login(ctx, client, wallet)
		kp, err := client.EnsureIdentity(ctx, wallet)
		exitOnError(err)
		fmt.Printf("Identity published for %s\n", kp.WalletAddress)

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: hushctl send <recipient> <note>")
			os.Exit(1)
		}
		wallet := requireWallet()
		login(ctx, client, wallet)
		id := sendNote(ctx, client, wallet, os.Args[2], os.Args[3], nil, "")
		fmt.Printf("Sent: %s\n", id)

	case "pay":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: hushctl pay <recipient> <amount-strk> [note]")
			os.Exit(1)
		}
		wallet := requireWallet()
		login(ctx, client, wallet)
		note := ""
		if len(os.Args) > 4 {
			note = os.Args[4]
		}
		id := sendStealth(ctx, client, wallet, os.Args[2], os.Args[3], note)
		fmt.Printf("Stealth payment note sent: %s\n", id)

	case "list":
		wallet := requireWallet()
		kp, err := client.LoadIdentity(wallet)
		exitOnError(err)
		page, err := client.ListMessages(ctx, wallet, true, "", 50)
		exitOnError(err)
		for _, msg := range page.Messages {
			printMessage(&msg, kp)
		}

	case "claim":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: hushctl claim <message-id>")
			os.Exit(1)
		}
		wallet := requireWallet()
		login(ctx, client, wallet)
		claim(ctx, client, wallet, os.Args[2])

	case "backup":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: hushctl backup <passphrase>")
			os.Exit(1)
		}
		wallet := requireWallet()
		login(ctx, client, wallet)
		kp, err := client.LoadIdentity(wallet)
		exitOnError(err)
		sealed, err := hush.SealIdentityBackup(kp, os.Args[2])
		exitOnError(err)
		exitOnError(client.UploadBackup(ctx, sealed))
		fmt.Println("Identity backup uploaded")

	case "restore":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: hushctl restore <passphrase>")
			os.Exit(1)
		}
		wallet := requireWallet()
		login(ctx, client, wallet)
		sealed, err := client.DownloadBackup(ctx)
		exitOnError(err)
		if sealed == nil {
			fmt.Fprintln(os.Stderr, "No backup found")
			os.Exit(1)
		}
		kp, err := hush.OpenIdentityBackup(sealed, wallet, os.Args[2])
		exitOnError(err)
		exitOnError(client.SaveIdentity(kp))
		fmt.Println("Identity restored")

	case "events":
		wallet := requireWallet()
		login(ctx, client, wallet)
		events, err := client.DrainEvents(ctx)
		exitOnError(err)
		printJSON(events)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func sendNote(ctx context.Context, client *hush.Client, wallet, recipient, note string, meta *hush.Meta, amount string) string {
	pub, err := client.ResolvePublicKey(ctx, recipient)
	exitOnError(err)
	env, err := hush.Encrypt(note, wallet, recipient, pub, meta)
	exitOnError(err)

	payload, err := json.Marshal(env)
	exitOnError(err)

	kind := hush.KindChat
	if meta != nil {
		kind = meta.Type
	}
	msg := &hush.LedgerMessage{
		Kind:    kind,
		Amount:  amount,
		Payload: payload,
	}
	if meta != nil && meta.IsStealth {
		msg.IsStealth = true
		msg.StealthAddress = meta.Stealth.StealthAddress
		msg.StealthSalt = meta.Stealth.StealthSalt
		msg.StealthClassHash = meta.Stealth.StealthClassHash
		msg.StealthPublicKey = meta.Stealth.StealthPublicKey
		msg.DerivationTag = meta.Stealth.DerivationTag
	}

	id, err := client.SaveMessage(ctx, msg)
	exitOnError(err)

	cache := client.NewNoteCache()
	_ = cache.Put(hush.Fingerprint(env), &hush.CachedNote{
		Recipient: recipient,
		Plaintext: note,
		CreatedAt: time.Now().UnixMilli(),
	})
	return id
}

func sendStealth(ctx context.Context, client *hush.Client, wallet, recipient, amountSTRK, note string) string {
	amount, err := hush.ParseTokenAmount(amountSTRK)
	exitOnError(err)

	classHash := os.Getenv("HUSH_STEALTH_CLASS_HASH")
	stealth, err := hush.Derive(wallet, recipient, classHash)
	exitOnError(err)

	body, err := hush.BuildStealthBody(amount.String(), note, *stealth)
	exitOnError(err)

	meta := &hush.Meta{
		Type:      hush.KindPaymentNote,
		IsStealth: true,
		Stealth: &hush.StealthRef{
			StealthAddress:   stealth.StealthAddress,
			StealthSalt:      stealth.Salt,
			StealthClassHash: stealth.ClassHash,
			StealthPublicKey: stealth.StealthPublicKey,
			DerivationTag:    stealth.DerivationTag,
		},
	}
	fmt.Printf("Fund stealth address %s with %s wei, then attach the txHash.\n", stealth.StealthAddress, amount)
	return sendNote(ctx, client, wallet, recipient, body, meta, amount.String())
}

func claim(ctx context.Context, client *hush.Client, wallet, messageID string) {
	kp, err := client.LoadIdentity(wallet)
	exitOnError(err)

	page, err := client.ListMessages(ctx, wallet, false, "", 200)
	exitOnError(err)

	var target *hush.LedgerMessage
	for i := range page.Messages {
		if page.Messages[i].ID == messageID {
			target = &page.Messages[i]
			break
		}
	}
	if target == nil {
		fmt.Fprintf(os.Stderr, "Message %s not found\n", messageID)
		os.Exit(1)
	}

	var env hush.Envelope
	exitOnError(json.Unmarshal(target.Payload, &env))
	plaintext, ok := hush.DecryptVisible(&env, kp.PrivateKey)
	if !ok {
		fmt.Fprintln(os.Stderr, "Cannot decrypt this message with the local identity key")
		os.Exit(1)
	}
	body := hush.ParseStealthBody(plaintext)
	if body == nil {
		fmt.Fprintln(os.Stderr, "Message is not a stealth payment")
		os.Exit(1)
	}

	amount, ok := new(big.Int).SetString(body.Amount, 10)
	if !ok {
		fmt.Fprintln(os.Stderr, "Invalid amount in stealth body")
		os.Exit(1)
	}

	router := chain.NewRouter(rpcEndpoints(), nil)
	chainClient, err := router.Pick(ctx)
	exitOnError(err)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	orch := hush.NewOrchestrator(chainClient, client, logger)
	result, err := orch.Claim(ctx, hush.ClaimRequest{
		MessageID:        messageID,
		Stealth:          body.Stealth,
		RequestedAmount:  amount,
		RecipientAddress: wallet,
	})
	exitOnError(err)

	fmt.Printf("Claimed: %s\n", result.ClaimTxHash)
	if result.DeployTxHash != "" {
		fmt.Printf("Deployed: %s\n", result.DeployTxHash)
	}
	if result.SweepTxHash != "" {
		fmt.Printf("Swept: %s\n", result.SweepTxHash)
	}
}

func printMessage(msg *hush.LedgerMessage, kp *hush.IdentityKeyPair) {
	ts := time.UnixMilli(msg.CreatedAt).Format("2006-01-02 15:04:05")
	var env hush.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return
	}
	plaintext, ok := hush.DecryptVisible(&env, kp.PrivateKey)
	if !ok {
		// Undecryptable envelopes are dropped from view.
		return
	}
	if body := hush.ParseStealthBody(plaintext); body != nil {
		fmt.Printf("[%s] %s: stealth payment of %s wei (%s) id=%s\n",
			ts, env.SenderAddress, body.Amount, msg.ClaimStatus, msg.ID)
		return
	}
	fmt.Printf("[%s] %s: %s\n", ts, env.SenderAddress, plaintext)
}

func login(ctx context.Context, client *hush.Client, wallet string) {
	starkKey := os.Getenv("HUSH_STARK_KEY")
	if starkKey == "" {
		fmt.Fprintln(os.Stderr, "HUSH_STARK_KEY is required for authenticated commands")
		os.Exit(1)
	}
	exitOnError(client.Authenticate(ctx, wallet, starkKey))
}

func requireWallet() string {
	wallet := os.Getenv("HUSH_WALLET")
	if wallet == "" {
		fmt.Fprintln(os.Stderr, "HUSH_WALLET is required")
		os.Exit(1)
	}
	return wallet
}

func rpcEndpoints() []string {
	raw := os.Getenv("HUSH_RPC_URLS")
	if raw == "" {
		return nil
	}
	var endpoints []string
	for _, url := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			endpoints = append(endpoints, trimmed)
		}
	}
	return endpoints
}

func usage() {
	fmt.Println(`hushctl - encrypted notes and stealth payments over Starknet

Usage: hushctl <command> [options]

Commands:
  register                    Generate/publish this wallet's identity key
  send <recipient> <note>     Send an encrypted note
  pay <recipient> <amount>    Send a stealth payment note (amount in STRK)
  list                        List and decrypt this wallet's messages
  claim <message-id>          Claim a stealth payment to this wallet
  backup <passphrase>         Upload a sealed identity backup
  restore <passphrase>        Restore identity from a sealed backup
  events                      Drain pending realtime events

Environment:
  HUSH_URL                 Relay URL (default: http://localhost:8080)
  HUSH_CONFIG              Config directory (default: ~/.hush)
  HUSH_WALLET              Wallet address
  HUSH_STARK_KEY           Wallet Stark private key (hex)
  HUSH_RPC_URLS            Comma-separated Starknet RPC endpoints
  HUSH_STEALTH_CLASS_HASH  Stealth account class hash override`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
