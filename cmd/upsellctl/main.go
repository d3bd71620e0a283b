// upsellctl is a CLI tool for poking a running upsell service.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	upsellctl health -app URL
//	upsellctl match  -app URL -shop DOMAIN [-gids g1,g2]
//	upsellctl sign   -app URL -shop DOMAIN -ref ID -token TOKEN -variant ID [-qty N] [-origin URL]
//	upsellctl funnels -app URL -shop DOMAIN [-sort name|discount|created]
//
// Examples:
//
//	upsellctl match -app http://localhost:8080 -shop demo.myshopify.com -gids gid://shopify/Product/111
//	upsellctl sign -app http://localhost:8080 -shop demo.myshopify.com -ref ref-1 -token "$TOKEN" -variant 555
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "health":
		runHealth(args)
	case "match":
		runMatch(args)
	case "sign":
		runSign(args)
	case "funnels":
		runFunnels(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `upsellctl - post-purchase upsell test tool

Usage:
  upsellctl <command> [options]

Commands:
  health    Check service liveness
  match     Resolve upsell offers for a set of product references
  sign      Request a signed change-set
  funnels   List a shop's funnels

Examples:
  upsellctl match -app http://localhost:8080 -shop demo.myshopify.com -gids gid://shopify/Product/111
  upsellctl sign -app http://localhost:8080 -shop demo.myshopify.com -ref ref-1 -token "$TOKEN" -variant 555
`)
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	app := fs.String("app", "http://localhost:8080", "service base URL")
	fs.Parse(args)

	doGet(*app + "/health")
}

func runMatch(args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	app := fs.String("app", "http://localhost:8080", "service base URL")
	shop := fs.String("shop", "", "shop domain")
	gids := fs.String("gids", "", "comma-separated product references")
	fs.Parse(args)

	q := url.Values{}
	if *shop != "" {
		q.Set("shop", *shop)
	}
	if *gids != "" {
		q.Set("gids", *gids)
	}
	doGet(*app + "/offers/match?" + q.Encode())
}

func runSign(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	app := fs.String("app", "http://localhost:8080", "service base URL")
	shop := fs.String("shop", "", "shop domain")
	ref := fs.String("ref", "", "checkout reference id")
	token := fs.String("token", "", "buyer bearer token")
	variant := fs.String("variant", "", "variant id or gid to add")
	qty := fs.Int("qty", 1, "quantity")
	origin := fs.String("origin", "", "checkout origin override")
	fs.Parse(args)

	if *shop == "" || *ref == "" || *token == "" || *variant == "" {
		fmt.Fprintln(os.Stderr, "sign requires -shop, -ref, -token and -variant")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]any{
		"shop":        *shop,
		"referenceId": *ref,
		"changes": []map[string]any{
			{"type": "add_variant", "variant_id": *variant, "quantity": *qty},
		},
		"checkoutOrigin": *origin,
	})

	req, err := http.NewRequest(http.MethodPost, *app+"/offers/sign", bytes.NewReader(body))
	if err != nil {
		fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+*token)

	doRequest(req)
}

func runFunnels(args []string) {
	fs := flag.NewFlagSet("funnels", flag.ExitOnError)
	app := fs.String("app", "http://localhost:8080", "service base URL")
	shop := fs.String("shop", "", "shop domain")
	sortKey := fs.String("sort", "", "sort key: name, discount, or created")
	fs.Parse(args)

	if *shop == "" {
		fmt.Fprintln(os.Stderr, "funnels requires -shop")
		os.Exit(1)
	}

	q := url.Values{}
	q.Set("shop", *shop)
	if *sortKey != "" {
		q.Set("sort", *sortKey)
	}
	doGet(*app + "/funnels?" + q.Encode())
}

func doGet(u string) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		fatal(err)
	}
	doRequest(req)
}

// doRequest executes the request and pretty-prints the JSON response.
// Exits non-zero on transport failure or a non-2xx status.
func doRequest(req *http.Request) {
	resp, err := client.Do(req)
	if err != nil {
		fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fatal(err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		os.Stdout.Write(raw)
		fmt.Println()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "status: %d\n", resp.StatusCode)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
