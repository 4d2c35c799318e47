// Command cartctl edits a remote shopping cart through the sync library.
//
//	cartctl [flags] show
//	cartctl [flags] add [-renewal PURCHASE_ID] [-meta META] [-volume N] PRODUCT...
//	cartctl [flags] remove UUID
//	cartctl [flags] replace [-uuid UUID] PRODUCT...
//	cartctl [flags] coupon CODE
//	cartctl [flags] uncoupon
//	cartctl [flags] location -country CC [-postal CODE] [-subdivision CODE]
//	cartctl [flags] reload
//
// PRODUCT is a numeric product id or a catalog slug.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"wpcom-shopping-cart/internal/cartclient"
	"wpcom-shopping-cart/internal/catalog"
	"wpcom-shopping-cart/internal/config"
	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/internal/model"
	"wpcom-shopping-cart/internal/shoppingcart"
	"wpcom-shopping-cart/internal/tracing"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cliError struct {
	usage bool
	err   error
}

func (e *cliError) Error() string { return e.err.Error() }

func usageErrorf(format string, args ...interface{}) error {
	return &cliError{usage: true, err: fmt.Errorf(format, args...)}
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logging.Init(cfg.App.Debug)
	logging.Base().SetOutput(stderr)

	fs := flag.NewFlagSet("cartctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", cfg.Client.BaseURL, "cart REST root")
	token := fs.String("token", cfg.Client.Token, "bearer token")
	key := fs.String("key", os.Getenv("CART_KEY"), "cart key")
	timeout := fs.Duration("timeout", cfg.Sync.RequestTimeout, "overall command timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *key == "" || fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: cartctl -key KEY <show|add|remove|replace|coupon|uncoupon|location|reload> [args]")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer shutdownTracing(context.Background())

	client, err := cartclient.New(cartclient.Config{
		BaseURL: *baseURL,
		Token:   *token,
		Timeout: cfg.Client.Timeout,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	manager := shoppingcart.NewManager(client, syncOptions(cfg.Sync))
	defer manager.Close()

	sub := manager.Subscribe(model.CartKey(*key))
	defer sub.Close()

	if err := execute(ctx, sub, catalog.Default(), fs.Arg(0), fs.Args()[1:], stderr); err != nil {
		fmt.Fprintln(stderr, "cartctl:", err)
		var ce *cliError
		if errors.As(err, &ce) && ce.usage {
			return 2
		}
		return 1
	}

	out, err := json.MarshalIndent(sub.ResponseCart(), "", "  ")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func execute(ctx context.Context, sub *shoppingcart.Subscription, cat *catalog.Catalog, cmd string, args []string, stderr io.Writer) error {
	if err := waitLoaded(ctx, sub); err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	var c *shoppingcart.Completion
	switch cmd {
	case "show":
		return nil

	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		fs.SetOutput(stderr)
		renewal := fs.String("renewal", "", "purchase id being renewed")
		meta := fs.String("meta", "", "product meta, e.g. a domain name")
		volume := fs.Int("volume", 1, "volume")
		if err := fs.Parse(args); err != nil {
			return &cliError{usage: true, err: err}
		}
		products, err := parseProducts(cat, fs.Args(), *meta, *volume, *renewal)
		if err != nil {
			return err
		}
		c = sub.AddProductsToCart(products...)

	case "remove":
		if len(args) != 1 {
			return usageErrorf("remove takes exactly one uuid")
		}
		c = sub.RemoveProductFromCart(args[0])

	case "replace":
		fs := flag.NewFlagSet("replace", flag.ContinueOnError)
		fs.SetOutput(stderr)
		uuid := fs.String("uuid", "", "replace only this line item")
		if err := fs.Parse(args); err != nil {
			return &cliError{usage: true, err: err}
		}
		products, err := parseProducts(cat, fs.Args(), "", 1, "")
		if err != nil {
			return err
		}
		if *uuid != "" {
			if len(products) != 1 {
				return usageErrorf("replace -uuid takes exactly one product")
			}
			c = sub.ReplaceProductInCart(*uuid, products[0])
		} else {
			c = sub.ReplaceProductsInCart(products...)
		}

	case "coupon":
		if len(args) != 1 {
			return usageErrorf("coupon takes exactly one code")
		}
		c = sub.ApplyCoupon(args[0])

	case "uncoupon":
		c = sub.RemoveCoupon()

	case "location":
		fs := flag.NewFlagSet("location", flag.ContinueOnError)
		fs.SetOutput(stderr)
		var loc model.CartLocation
		fs.StringVar(&loc.CountryCode, "country", "", "country code")
		fs.StringVar(&loc.PostalCode, "postal", "", "postal code")
		fs.StringVar(&loc.SubdivisionCode, "subdivision", "", "subdivision code")
		if err := fs.Parse(args); err != nil {
			return &cliError{usage: true, err: err}
		}
		c = sub.UpdateLocation(loc)

	case "reload":
		c = sub.ReloadFromServer()

	default:
		return usageErrorf("unknown command %q", cmd)
	}

	return c.Wait(ctx)
}

// syncOptions maps SYNC_* settings onto the sync library options.
func syncOptions(cfg config.SyncConfig) shoppingcart.Options {
	opts := shoppingcart.DefaultOptions()
	opts.DisableRefetchOnWindowFocus = !cfg.RefetchOnWindowFocus
	if cfg.FreshnessThreshold > 0 {
		opts.FreshnessThreshold = cfg.FreshnessThreshold
	}
	if cfg.RequestTimeout > 0 {
		opts.RequestTimeout = cfg.RequestTimeout
	}
	return opts
}

// waitLoaded blocks until the initial fetch has finished.
func waitLoaded(ctx context.Context, sub *shoppingcart.Subscription) error {
	for {
		st := sub.State()
		if st.Status == shoppingcart.StatusError {
			return st.Err
		}
		if !st.IsLoading() {
			return nil
		}
		select {
		case <-sub.Updates():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseProducts(cat *catalog.Catalog, args []string, meta string, volume int, renewal string) ([]model.RequestCartProduct, error) {
	if len(args) == 0 {
		return nil, usageErrorf("at least one product is required")
	}
	products := make([]model.RequestCartProduct, 0, len(args))
	for _, arg := range args {
		var (
			p  catalog.Product
			ok bool
		)
		if id, err := strconv.Atoi(arg); err == nil {
			p, ok = cat.Product(id)
			if !ok {
				p = catalog.Product{ID: id}
				ok = true
			}
		} else {
			p, ok = cat.ProductBySlug(arg)
		}
		if !ok {
			return nil, fmt.Errorf("unknown product %q", arg)
		}
		rp := model.RequestCartProduct{
			ProductID:   p.ID,
			ProductSlug: p.Slug,
			Meta:        meta,
			Volume:      volume,
		}
		if renewal != "" {
			rp.Extra = model.ProductExtra{PurchaseType: model.PurchaseTypeRenewal, PurchaseID: renewal}
		}
		products = append(products, rp)
	}
	return products, nil
}
