// cartctl is a CLI for the local storefront cart API.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	cartctl products [-api URL]
//	cartctl cart [-api URL]
//	cartctl add -product ID
//	cartctl decrease -product ID
//	cartctl set -product ID -qty N
//	cartctl remove -product ID
//	cartctl clear
//	cartctl sync
//	cartctl ack
//	cartctl notifications
//
// Examples:
//
//	cartctl add -api http://localhost:8080 -product p1
//	cartctl sync && cartctl ack
//	[ "$(cartctl cart -q)" = "ready" ] && echo "checkout allowed"
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"storefront/internal/handler"
	"storefront/internal/notify"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	apiURL  string
	quiet   bool
	noColor bool
	verbose bool
)

// out receives all command output; tests swap it.
var out io.Writer = os.Stdout

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

// apiError is returned for non-2xx responses.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fatal("%v", err)
	}
}

func run(cmd string, args []string) error {
	switch cmd {
	case "products":
		return runProducts(args)
	case "cart":
		return runCart(args)
	case "add":
		return runProductCommand("add", args, func(id string) (string, string, interface{}) {
			return "POST", "/cart/items", map[string]string{"productId": id}
		})
	case "decrease":
		return runProductCommand("decrease", args, func(id string) (string, string, interface{}) {
			return "POST", "/cart/items/" + url.PathEscape(id) + "/decrease", nil
		})
	case "remove":
		return runProductCommand("remove", args, func(id string) (string, string, interface{}) {
			return "DELETE", "/cart/items/" + url.PathEscape(id), nil
		})
	case "set":
		return runSet(args)
	case "clear":
		return runCartCommand("clear", args, "DELETE", "/cart")
	case "sync":
		return runCartCommand("sync", args, "POST", "/cart/sync")
	case "ack":
		return runCartCommand("ack", args, "POST", "/cart/acknowledge")
	case "notifications":
		return runNotifications(args)
	case "-h", "-help", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartctl - storefront cart tool

Usage:
  cartctl <command> [options]

Commands:
  products       List the catalog
  cart           Show the cart and whether checkout is allowed
  add            Add one unit of a product
  decrease       Remove one unit of a product
  set            Set the quantity of a product
  remove         Remove a product
  clear          Empty the cart
  sync           Reconcile with the server
  ack            Acknowledge server-side changes
  notifications  Show and clear pending notifications

Examples:
  cartctl add -api http://localhost:8080 -product p1
  cartctl set -product p1 -qty 3
  cartctl sync && cartctl ack

Run 'cartctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the global flags on a command's flag set.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&apiURL, "api", envOr("CARTCTL_API", "http://localhost:8080"), "storefront API base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if noColor {
		disableColors()
	}
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

func runProducts(args []string) error {
	fs := newFlagSet("products")
	if err := parse(fs, args); err != nil {
		return err
	}

	var page handler.ProductsView
	if _, err := doRequest("GET", "/products", nil, &page); err != nil {
		return fmt.Errorf("listing products: %w", err)
	}

	for _, p := range page.Products {
		if quiet {
			fmt.Fprintln(out, p.ID)
			continue
		}
		stock := fmt.Sprintf("%d in stock", p.AvailableQuantity)
		if !p.Available {
			stock = colorRed + "unavailable" + colorReset
		}
		fmt.Fprintf(out, "  %s%-12s%s %-30s %8s  %s\n", colorCyan, p.ID, colorReset, p.Title, p.Cost, stock)
	}
	if !quiet {
		printInfo("%d product(s)", page.Total)
	}
	return nil
}

// =============================================================================
// CART
// =============================================================================

func runCart(args []string) error {
	fs := newFlagSet("cart")
	if err := parse(fs, args); err != nil {
		return err
	}

	var cart handler.CartView
	header, err := doRequest("GET", "/cart", nil, &cart)
	if err != nil {
		return fmt.Errorf("getting cart: %w", err)
	}
	printCart(cart, header)
	return nil
}

func runProductCommand(name string, args []string, build func(id string) (string, string, interface{})) error {
	fs := newFlagSet(name)
	var productID string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if productID == "" {
		fs.Usage()
		return errors.New("-product is required")
	}

	method, path, body := build(productID)
	return mutate(name, method, path, body)
}

func runSet(args []string) error {
	fs := newFlagSet("set")
	var productID string
	var quantity int
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.IntVar(&quantity, "qty", -1, "New quantity, 0 removes (required)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if productID == "" || quantity < 0 {
		fs.Usage()
		return errors.New("-product and -qty are required")
	}

	return mutate("set", "PUT", "/cart/items/"+url.PathEscape(productID), map[string]int{"quantity": quantity})
}

func runCartCommand(name string, args []string, method, path string) error {
	fs := newFlagSet(name)
	if err := parse(fs, args); err != nil {
		return err
	}
	return mutate(name, method, path, nil)
}

func mutate(name, method, path string, body interface{}) error {
	var cart handler.CartView
	header, err := doRequest(method, path, body, &cart)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	printCart(cart, header)
	return nil
}

func runNotifications(args []string) error {
	fs := newFlagSet("notifications")
	if err := parse(fs, args); err != nil {
		return err
	}

	var resp struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	if _, err := doRequest("GET", "/notifications", nil, &resp); err != nil {
		return fmt.Errorf("getting notifications: %w", err)
	}
	for _, n := range resp.Notifications {
		switch n.Level {
		case notify.LevelError:
			printError("%s", n.Message)
		case notify.LevelWarning:
			printWarning("%s", n.Message)
		default:
			printInfo("%s", n.Message)
		}
	}
	return nil
}

// printCart shows the cart. In quiet mode it prints only "ready" or
// "blocked", read from the Cart-State header.
func printCart(cart handler.CartView, header http.Header) {
	blocked := cart.CheckoutBlocked
	if raw := header.Get(handler.CartStateHeader); raw != "" {
		if state, err := handler.ParseCartState(raw); err == nil {
			blocked = state.CheckoutBlocked()
		}
	}

	if quiet {
		if blocked {
			fmt.Fprintln(out, "blocked")
		} else {
			fmt.Fprintln(out, "ready")
		}
		return
	}

	if len(cart.Items) == 0 {
		printInfo("Cart is empty")
	}
	for _, item := range cart.Items {
		fmt.Fprintf(out, "  %s%-12s%s %-30s x%-3d %8s\n",
			colorCyan, item.ProductID, colorReset, item.Title, item.Quantity, item.LineTotal)
	}
	fmt.Fprintf(out, "  %sSubtotal:%s %s%s%s\n", colorBold, colorReset, colorGreen, cart.Subtotal, colorReset)

	for _, d := range cart.Diff {
		if d.NewQuantity == nil {
			printWarning("%s is no longer available", d.Title)
		} else {
			printWarning("%s reduced from %d to %d", d.Title, d.OldQuantity, *d.NewQuantity)
		}
	}
	if blocked {
		printWarning("Checkout blocked until changes are acknowledged (cartctl ack)")
	} else {
		printSuccess("Checkout allowed")
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body, dest interface{}) (http.Header, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	reqURL := strings.TrimSuffix(apiURL, "/") + path
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode}
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			apiErr.Code = errResp.Error.Code
			apiErr.Message = errResp.Error.Message
		}
		return resp.Header, apiErr
	}

	if dest != nil {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
	}

	return resp.Header, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Fprintf(out, "\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Fprintf(out, "\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Fprintf(out, "%s%s\n", prefix, string(data))
		return
	}
	fmt.Fprintln(out, pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(out, "%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(out, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...interface{}) {
	fmt.Fprintf(out, "%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(out, "%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
