// Package main provides an operator CLI for local merch claim setups: issuer
// keys, admin token hashes, code bindings, offline mint signatures and
// holder upgrade authorizations.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"merch/internal/claim/models"
	"merch/internal/claim/signer"
	"merch/internal/platform/config"
	"merch/pkg/secrets"
)

func main() {
	keyCmd := flag.NewFlagSet("key", flag.ExitOnError)
	keyPrivate := keyCmd.String("private-key", "", "Existing hex key to inspect. A new key is generated if empty.")
	keyJSON := keyCmd.Bool("json", false, "Output as JSON")

	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)
	adminToken := adminCmd.String("token", "", "Plaintext admin token. A random one is generated if empty.")
	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	bindingCmd := flag.NewFlagSet("binding", flag.ExitOnError)
	bindingBase := bindingCmd.String("base", models.DefaultTokenURIBase, "Token URI base")
	bindingJSON := bindingCmd.Bool("json", false, "Output as JSON")

	signCmd := flag.NewFlagSet("sign", flag.ExitOnError)
	signKey := signCmd.String("private-key", config.DevIssuerKey, "Issuer hex key")
	signTo := signCmd.String("to", "", "Recipient wallet address")
	signCode := signCmd.String("code", "", "Claim code whose binding is signed")
	signBase := signCmd.String("base", models.DefaultTokenURIBase, "Token URI base")
	signJSON := signCmd.Bool("json", false, "Output as JSON")

	upgradeCmd := flag.NewFlagSet("upgrade", flag.ExitOnError)
	upgradeKey := upgradeCmd.String("private-key", "", "SBT holder hex key")
	upgradeSBT := upgradeCmd.String("sbt", "", "SBT token id")
	upgradeOrganizer := upgradeCmd.String("organizer", "", "Organizer address receiving its fee share")
	upgradeTTL := upgradeCmd.Duration("ttl", 5*time.Minute, "How long the authorization stays valid")
	upgradeJSON := upgradeCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "key":
		keyCmd.Parse(os.Args[2:])
		showKey(*keyPrivate, *keyJSON)
	case "admin":
		adminCmd.Parse(os.Args[2:])
		hashAdminToken(*adminToken, *adminJSON)
	case "binding":
		bindingCmd.Parse(os.Args[2:])
		showBindings(bindingCmd.Args(), *bindingBase, *bindingJSON)
	case "sign":
		signCmd.Parse(os.Args[2:])
		signMint(*signKey, *signTo, *signCode, *signBase, *signJSON)
	case "upgrade":
		upgradeCmd.Parse(os.Args[2:])
		authorizeUpgrade(*upgradeKey, *upgradeSBT, *upgradeOrganizer, *upgradeTTL, *upgradeJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`merchctl - operator helpers for the merch claim service

Usage:
  merchctl <command> [flags]

Commands:
  key       Generate an issuer key or show the address of an existing one
  admin     Hash an admin token for ADMIN_TOKEN_HASH
  binding   Print the eventId and tokenURI derived for claim codes
  sign      Produce a mint signature offline
  upgrade   Sign a holder's companion upgrade authorization

Examples:
  # New issuer key for ISSUER_PRIVATE_KEY
  merchctl key

  # Hash a token for X-Admin-Token
  merchctl admin -token "my-admin-token"

  # Bindings for a batch of codes
  merchctl binding DEMO123 VIP001

  # Sign with the development key
  merchctl sign -to 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266 -code DEMO123

  # Authorize a companion upgrade as the SBT holder
  merchctl upgrade -private-key $HOLDER_KEY -sbt 1 -organizer 0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC

Use "merchctl <command> -h" for more information about a command.`)
}

type keyOutput struct {
	PrivateKey string `json:"privateKey,omitempty"`
	Address    string `json:"address"`
}

func showKey(privateHex string, jsonOutput bool) {
	out := keyOutput{}
	if privateHex == "" {
		key, err := crypto.GenerateKey()
		if err != nil {
			fail("generate key: %v", err)
		}
		out.PrivateKey = hexutil.Encode(crypto.FromECDSA(key))
		out.Address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	} else {
		sig, err := signer.NewFromHex(privateHex)
		if err != nil {
			fail("%v", err)
		}
		out.Address = sig.Issuer().Hex()
	}

	if jsonOutput {
		printJSON(out)
		return
	}
	fmt.Println("Issuer Key")
	fmt.Println("==========")
	if out.PrivateKey != "" {
		fmt.Printf("Private Key: %s\n", out.PrivateKey)
	}
	fmt.Printf("Address:     %s\n", out.Address)
	fmt.Println()
	fmt.Println("Register the address as issuer on the credential contract.")
}

type adminOutput struct {
	Token string `json:"token"`
	Hash  string `json:"hash"`
}

func hashAdminToken(token string, jsonOutput bool) {
	if token == "" {
		generated, err := secrets.Generate()
		if err != nil {
			fail("generate token: %v", err)
		}
		token = generated
	}
	hash, err := secrets.Hash(token)
	if err != nil {
		fail("hash token: %v", err)
	}

	if jsonOutput {
		printJSON(adminOutput{Token: token, Hash: hash})
		return
	}
	fmt.Println("Admin API Token")
	fmt.Println("===============")
	fmt.Printf("Token: %s\n", token)
	fmt.Printf("Hash:  %s\n", hash)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ADMIN_TOKEN_HASH='" + hash + "'")
	fmt.Println("  curl -H \"X-Admin-Token: " + token + "\" http://localhost:8080/admin/codes")
}

type bindingOutput struct {
	Code     string `json:"code"`
	EventID  uint64 `json:"eventId"`
	TokenURI string `json:"tokenURI"`
}

func showBindings(codes []string, base string, jsonOutput bool) {
	if len(codes) == 0 {
		fail("at least one code is required")
	}
	out := make([]bindingOutput, 0, len(codes))
	for _, c := range codes {
		code := models.NormalizeCode(c)
		b := models.DeriveBinding(code, base)
		out = append(out, bindingOutput{Code: code, EventID: b.EventID, TokenURI: b.TokenURI})
	}

	if jsonOutput {
		printJSON(out)
		return
	}
	for _, b := range out {
		fmt.Printf("%-16s %8d  %s\n", b.Code, b.EventID, b.TokenURI)
	}
}

type signOutput struct {
	Issuer    string `json:"issuer"`
	To        string `json:"to"`
	EventID   uint64 `json:"eventId"`
	TokenURI  string `json:"tokenURI"`
	Digest    string `json:"digest"`
	Signature string `json:"signature"`
}

func signMint(privateHex, to, code, base string, jsonOutput bool) {
	if !common.IsHexAddress(to) {
		fail("-to must be a valid address")
	}
	if strings.TrimSpace(code) == "" {
		fail("-code is required")
	}
	sig, err := signer.NewFromHex(privateHex)
	if err != nil {
		fail("%v", err)
	}

	b := models.DeriveBinding(code, base)
	auth := models.MintAuthorization{EventID: b.EventID, TokenURI: b.TokenURI}
	recipient := common.HexToAddress(to)
	digest, err := signer.BuildDigest(recipient, auth.EventIDBig(), b.TokenURI)
	if err != nil {
		fail("build digest: %v", err)
	}
	signature, err := sig.Sign(digest)
	if err != nil {
		fail("%v", err)
	}

	out := signOutput{
		Issuer:    sig.Issuer().Hex(),
		To:        recipient.Hex(),
		EventID:   b.EventID,
		TokenURI:  b.TokenURI,
		Digest:    digest.Message.Hex(),
		Signature: "0x" + hex.EncodeToString(signature),
	}
	if jsonOutput {
		printJSON(out)
		return
	}
	fmt.Println("Mint Signature")
	fmt.Println("==============")
	fmt.Printf("Issuer:    %s\n", out.Issuer)
	fmt.Printf("To:        %s\n", out.To)
	fmt.Printf("Event ID:  %d\n", out.EventID)
	fmt.Printf("Token URI: %s\n", out.TokenURI)
	fmt.Printf("Digest:    %s\n", out.Digest)
	fmt.Printf("Signature: %s\n", out.Signature)
}

type upgradeOutput struct {
	SBTID     string `json:"sbtId"`
	Organizer string `json:"organizer"`
	Requester string `json:"requester"`
	Expiry    int64  `json:"expiry"`
	Signature string `json:"signature"`
}

func authorizeUpgrade(privateHex, sbt, organizer string, ttl time.Duration, jsonOutput bool) {
	if privateHex == "" {
		fail("-private-key is required")
	}
	id, ok := new(big.Int).SetString(strings.TrimSpace(sbt), 10)
	if !ok {
		fail("-sbt must be a decimal token id")
	}
	if !common.IsHexAddress(organizer) {
		fail("-organizer must be a valid address")
	}
	holder, err := signer.NewFromHex(privateHex)
	if err != nil {
		fail("%v", err)
	}

	expiry := time.Now().Add(ttl).Unix()
	org := common.HexToAddress(organizer)
	digest, err := signer.BuildUpgradeDigest(id, org, expiry)
	if err != nil {
		fail("build digest: %v", err)
	}
	signature, err := holder.Sign(digest)
	if err != nil {
		fail("%v", err)
	}

	out := upgradeOutput{
		SBTID:     id.String(),
		Organizer: org.Hex(),
		Requester: holder.Issuer().Hex(),
		Expiry:    expiry,
		Signature: hexutil.Encode(signature),
	}
	if jsonOutput {
		printJSON(out)
		return
	}
	fmt.Println("Upgrade Authorization")
	fmt.Println("=====================")
	fmt.Printf("SBT ID:    %s\n", out.SBTID)
	fmt.Printf("Organizer: %s\n", out.Organizer)
	fmt.Printf("Requester: %s\n", out.Requester)
	fmt.Printf("Expiry:    %d\n", out.Expiry)
	fmt.Printf("Signature: %s\n", out.Signature)
	fmt.Println()
	fmt.Println("POST these fields as the /companion/upgrade body.")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail("encoding JSON: %v", err)
	}
}
