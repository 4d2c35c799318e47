package shoppingcart_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"wpcom-shopping-cart/internal/model"
	"wpcom-shopping-cart/internal/shoppingcart"
)

const siteKey model.CartKey = "123456"

func loadedSubscription(t *testing.T, m *shoppingcart.Manager, key model.CartKey) *shoppingcart.Subscription {
	t.Helper()
	sub := m.Subscribe(key)
	waitForStatus(t, sub, shoppingcart.StatusValid)
	return sub
}

func TestSubscribeLoadsCart(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)

	api.block()
	sub := m.Subscribe(siteKey)
	if !sub.IsLoading() {
		t.Fatalf("expected loading right after subscribe, got %q", sub.State().Status)
	}
	api.release()

	st := waitForStatus(t, sub, shoppingcart.StatusValid)
	if st.Cart.CartKey != siteKey {
		t.Errorf("cart key = %q, want %q", st.Cart.CartKey, siteKey)
	}
	if get, set := api.calls(); get != 1 || set != 0 {
		t.Errorf("calls = (%d get, %d set), want (1, 0)", get, set)
	}
}

func TestExampleScenario(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	if err := waitSettled(t, sub.AddProductsToCart(product(1009, "value_bundle"))); err != nil {
		t.Fatalf("add plan: %v", err)
	}
	if diff := cmp.Diff([]string{"value_bundle"}, slugs(sub.ResponseCart())); diff != "" {
		t.Fatalf("after plan (-want +got):\n%s", diff)
	}

	if err := waitSettled(t, sub.AddProductsToCart(renewal(1011, "ecommerce-bundle"))); err != nil {
		t.Fatalf("add renewal: %v", err)
	}
	cart := sub.ResponseCart()
	if diff := cmp.Diff([]string{"ecommerce-bundle"}, slugs(cart)); diff != "" {
		t.Fatalf("after renewal (-want +got):\n%s", diff)
	}

	if err := waitSettled(t, sub.RemoveProductFromCart(cart.Products[0].UUID)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n := len(sub.ResponseCart().Products); n != 0 {
		t.Errorf("expected empty cart, got %d products", n)
	}
}

func TestAddProductsKeepsEveryRegularItem(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	api.block()
	completions := []*shoppingcart.Completion{
		sub.AddProductsToCart(product(1009, "value_bundle")),
		sub.AddProductsToCart(product(6, "domain_map"), product(6, "domain_map")),
		sub.AddProductsToCart(product(2106, "jetpack_backup_daily")),
	}
	api.release()

	for i, c := range completions {
		if err := waitSettled(t, c); err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
	}

	want := []string{"value_bundle", "domain_map", "domain_map", "jetpack_backup_daily"}
	if diff := cmp.Diff(want, slugs(sub.ResponseCart())); diff != "" {
		t.Errorf("products (-want +got):\n%s", diff)
	}
	// The first add goes out alone, the other two share one request.
	if _, set := api.calls(); set != 2 {
		t.Errorf("set calls = %d, want 2", set)
	}
}

func TestAddRegularToRenewalCartReplaces(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	if err := waitSettled(t, sub.AddProductsToCart(renewal(1011, "ecommerce-bundle"), renewal(2106, "jetpack_backup_daily"))); err != nil {
		t.Fatal(err)
	}
	if err := waitSettled(t, sub.AddProductsToCart(product(1009, "value_bundle"))); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"value_bundle"}, slugs(sub.ResponseCart())); diff != "" {
		t.Errorf("products (-want +got):\n%s", diff)
	}
}

func TestAddRenewalToRenewalCartAppends(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	if err := waitSettled(t, sub.AddProductsToCart(renewal(1011, "ecommerce-bundle"))); err != nil {
		t.Fatal(err)
	}
	if err := waitSettled(t, sub.AddProductsToCart(renewal(2106, "jetpack_backup_daily"))); err != nil {
		t.Fatal(err)
	}
	want := []string{"ecommerce-bundle", "jetpack_backup_daily"}
	if diff := cmp.Diff(want, slugs(sub.ResponseCart())); diff != "" {
		t.Errorf("products (-want +got):\n%s", diff)
	}
}

func TestRemoveProduct(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	if err := waitSettled(t, sub.AddProductsToCart(product(1009, "value_bundle"))); err != nil {
		t.Fatal(err)
	}

	t.Run("unknown uuid is a no-op", func(t *testing.T) {
		if err := waitSettled(t, sub.RemoveProductFromCart("does-not-exist")); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"value_bundle"}, slugs(sub.ResponseCart())); diff != "" {
			t.Errorf("products (-want +got):\n%s", diff)
		}
	})

	t.Run("last item leaves an empty cart", func(t *testing.T) {
		uuid := sub.ResponseCart().Products[0].UUID
		if err := waitSettled(t, sub.RemoveProductFromCart(uuid)); err != nil {
			t.Fatal(err)
		}
		if n := len(sub.ResponseCart().Products); n != 0 {
			t.Errorf("expected empty cart, got %d products", n)
		}
	})
}

func TestReplaceProducts(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	if err := waitSettled(t, sub.AddProductsToCart(product(1009, "value_bundle"), product(6, "domain_map"))); err != nil {
		t.Fatal(err)
	}
	uuid := sub.ResponseCart().Products[1].UUID

	if err := waitSettled(t, sub.ReplaceProductInCart(uuid, product(12, "domain_reg"))); err != nil {
		t.Fatalf("replace one: %v", err)
	}
	got, ok := sub.ResponseCart().FindProduct(uuid)
	if !ok || got.ProductSlug != "domain_reg" {
		t.Errorf("product %s = %+v, want domain_reg with the same uuid", uuid, got)
	}

	err := waitSettled(t, sub.ReplaceProductInCart("missing", product(12, "domain_reg")))
	if !errors.Is(err, shoppingcart.ErrProductNotFound) {
		t.Errorf("replace missing: got %v, want ErrProductNotFound", err)
	}

	if err := waitSettled(t, sub.ReplaceProductsInCart(product(1008, "business-bundle"))); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	if diff := cmp.Diff([]string{"business-bundle"}, slugs(sub.ResponseCart())); diff != "" {
		t.Errorf("products (-want +got):\n%s", diff)
	}
}

func TestCompletionSettlesAfterCartUpdate(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	api.block()
	c := sub.AddProductsToCart(product(1009, "value_bundle"))
	if !sub.IsPendingUpdate() {
		t.Errorf("status = %q, want pending-update", sub.State().Status)
	}

	select {
	case <-c.Done():
		t.Fatal("completion settled before the server responded")
	case <-time.After(20 * time.Millisecond):
	}
	if n := len(sub.ResponseCart().Products); n != 0 {
		t.Fatalf("cart changed before the server responded: %d products", n)
	}

	api.release()
	if err := waitSettled(t, c); err != nil {
		t.Fatal(err)
	}
	// No read of Updates happens in between: the cart must already be stored.
	if diff := cmp.Diff([]string{"value_bundle"}, slugs(sub.ResponseCart())); diff != "" {
		t.Errorf("products (-want +got):\n%s", diff)
	}
	if sub.State().Status != shoppingcart.StatusValid {
		t.Errorf("status = %q, want valid", sub.State().Status)
	}
}

func TestMissingProductIDRejectsWithoutNetwork(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	c := sub.AddProductsToCart(model.RequestCartProduct{ProductSlug: "value_bundle"})
	select {
	case <-c.Done():
	default:
		t.Fatal("validation error did not settle synchronously")
	}
	if !errors.Is(c.Err(), shoppingcart.ErrMissingProductID) {
		t.Errorf("got %v, want ErrMissingProductID", c.Err())
	}

	c = sub.ReplaceProductsInCart(product(1009, "value_bundle"), model.RequestCartProduct{})
	if !errors.Is(c.Err(), shoppingcart.ErrMissingProductID) {
		t.Errorf("got %v, want ErrMissingProductID", c.Err())
	}

	if _, set := api.calls(); set != 0 {
		t.Errorf("set calls = %d, want 0", set)
	}
	if sub.State().Status != shoppingcart.StatusValid {
		t.Errorf("status = %q, want valid", sub.State().Status)
	}
}

func TestCoupons(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	if err := waitSettled(t, sub.ApplyCoupon("ABCD")); err != nil {
		t.Fatalf("apply valid coupon: %v", err)
	}
	if cart := sub.ResponseCart(); cart.Coupon != "ABCD" || !cart.IsCouponApplied {
		t.Errorf("coupon = %q applied=%v", cart.Coupon, cart.IsCouponApplied)
	}

	if err := waitSettled(t, sub.RemoveCoupon()); err != nil {
		t.Fatalf("remove coupon: %v", err)
	}
	if cart := sub.ResponseCart(); cart.Coupon != "" {
		t.Errorf("coupon = %q, want empty", cart.Coupon)
	}

	err := waitSettled(t, sub.ApplyCoupon("NOPE"))
	if !errors.Is(err, shoppingcart.ErrCouponNotApplied) {
		t.Errorf("apply invalid coupon: got %v, want ErrCouponNotApplied", err)
	}
	if sub.State().Status != shoppingcart.StatusValid {
		t.Errorf("status = %q, want valid", sub.State().Status)
	}

	if c := sub.ApplyCoupon(""); !errors.Is(c.Err(), shoppingcart.ErrEmptyCouponCode) {
		t.Errorf("empty coupon: got %v", c.Err())
	}
}

func TestUpdateLocation(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	loc := model.CartLocation{CountryCode: "US", PostalCode: "94110", SubdivisionCode: "CA"}
	if err := waitSettled(t, sub.UpdateLocation(loc)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(loc, sub.ResponseCart().Tax.Location); diff != "" {
		t.Errorf("location (-want +got):\n%s", diff)
	}

	c := sub.UpdateLocation(model.CartLocation{PostalCode: "94110"})
	if !errors.Is(c.Err(), shoppingcart.ErrInvalidLocation) {
		t.Errorf("got %v, want ErrInvalidLocation", c.Err())
	}
}

func TestBatchCarriesMutationsInOrder(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	api.block()
	first := sub.AddProductsToCart(product(1009, "value_bundle"))
	queued := []*shoppingcart.Completion{
		sub.AddProductsToCart(product(6, "domain_map")),
		sub.ReplaceProductInCart("missing", product(12, "domain_reg")),
		sub.ApplyCoupon("ABCD"),
		sub.UpdateLocation(model.CartLocation{CountryCode: "FR"}),
	}
	api.release()

	if err := waitSettled(t, first); err != nil {
		t.Fatal(err)
	}
	var errs []error
	for _, c := range queued {
		errs = append(errs, waitSettled(t, c))
	}
	if errs[0] != nil || errs[2] != nil || errs[3] != nil {
		t.Errorf("unexpected errors: %v", errs)
	}
	if !errors.Is(errs[1], shoppingcart.ErrProductNotFound) {
		t.Errorf("replace missing: got %v", errs[1])
	}

	req := api.lastRequest()
	want := &model.RequestCart{
		Products: []model.RequestCartProduct{
			{UUID: "uuid-1", ProductID: 1009, ProductSlug: "value_bundle", Volume: 1},
			product(6, "domain_map"),
		},
		Coupon: "ABCD",
		Tax:    model.RequestCartTax{Location: model.CartLocation{CountryCode: "FR"}},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("batched request (-want +got):\n%s", diff)
	}
}

func TestMutationsDuringInitialLoadWait(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)

	api.block()
	sub := m.Subscribe(siteKey)
	c := sub.AddProductsToCart(product(1009, "value_bundle"))
	if sub.State().Status != shoppingcart.StatusLoading {
		t.Errorf("status = %q, want loading", sub.State().Status)
	}
	if _, set := api.calls(); set != 0 {
		t.Fatalf("set issued before the initial load finished")
	}
	api.release()

	if err := waitSettled(t, c); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"value_bundle"}, slugs(sub.ResponseCart())); diff != "" {
		t.Errorf("products (-want +got):\n%s", diff)
	}
}

func TestSubscribersShareState(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)

	first := loadedSubscription(t, m, siteKey)
	second := m.Subscribe(siteKey)
	if m.Sessions() != 1 {
		t.Fatalf("sessions = %d, want 1", m.Sessions())
	}

	if err := waitSettled(t, second.AddProductsToCart(product(1009, "value_bundle"))); err != nil {
		t.Fatal(err)
	}
	if first.State() != second.State() {
		t.Error("subscribers observe different state snapshots")
	}

	st := waitForState(t, first, func(st *shoppingcart.State) bool { return len(st.Cart.Products) == 1 })
	if st != second.State() {
		t.Error("update delivered to the first subscriber is not the shared snapshot")
	}
	if get, _ := api.calls(); get != 1 {
		t.Errorf("get calls = %d, want 1", get)
	}
}

func TestWindowFocusSingleFetch(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)

	first := loadedSubscription(t, m, siteKey)
	second := m.Subscribe(siteKey)

	clock.Advance(10 * time.Second)
	api.block()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.WindowFocused()
		}()
	}
	wg.Wait()
	api.release()

	want := clock.Now().Unix()
	waitForState(t, first, func(st *shoppingcart.State) bool { return st.Cart.GeneratedAtTimestamp == want })
	if second.ResponseCart().GeneratedAtTimestamp != want {
		t.Error("second subscriber did not see the refetched cart")
	}
	if get, _ := api.calls(); get != 2 {
		t.Errorf("get calls = %d, want 2 (initial load plus one focus refetch)", get)
	}
	if first.State().Status != shoppingcart.StatusValid {
		t.Errorf("status = %q, want valid", first.State().Status)
	}
}

// focusFetched reports whether WindowFocused started a fetch. A mutation
// issued right after focus waits behind any fetch in flight, so by the time
// it settles the get counter has moved if and only if focus fetched.
func focusFetched(t *testing.T, m *shoppingcart.Manager, api *fakeCartAPI, sub *shoppingcart.Subscription) bool {
	t.Helper()
	before, _ := api.calls()
	m.WindowFocused()
	if err := waitSettled(t, sub.AddProductsToCart(product(1009, "value_bundle"))); err != nil {
		t.Fatal(err)
	}
	after, _ := api.calls()
	return after > before
}

func TestWindowFocusGuards(t *testing.T) {
	tests := []struct {
		name      string
		key       model.CartKey
		advance   time.Duration
		configure func(*shoppingcart.Options)
		want      bool
	}{
		{name: "stale cart", key: siteKey, advance: 10 * time.Second, want: true},
		{name: "within freshness threshold", key: siteKey, advance: 2 * time.Second},
		{name: "no-site sentinel", key: model.NoSiteCartKey, advance: time.Minute},
		{name: "no-user sentinel", key: model.NoUserCartKey, advance: time.Minute},
		{
			name:    "offline",
			key:     siteKey,
			advance: time.Minute,
			configure: func(o *shoppingcart.Options) {
				o.Environment = shoppingcart.OnlineFunc(func() bool { return false })
			},
		},
		{
			name:    "refetch disabled",
			key:     siteKey,
			advance: time.Minute,
			configure: func(o *shoppingcart.Options) {
				o.DisableRefetchOnWindowFocus = true
			},
		},
		{
			name:    "zero options refetch",
			key:     siteKey,
			advance: 10 * time.Second,
			configure: func(o *shoppingcart.Options) {
				*o = shoppingcart.Options{Clock: o.Clock}
			},
			want: true,
		},
		{
			name:    "custom threshold",
			key:     siteKey,
			advance: 2 * time.Second,
			configure: func(o *shoppingcart.Options) {
				o.FreshnessThreshold = time.Second
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			api := newFakeCartAPI(clock)
			m := newTestManager(t, api, clock, tt.configure)
			sub := loadedSubscription(t, m, tt.key)

			clock.Advance(tt.advance)
			if got := focusFetched(t, m, api, sub); got != tt.want {
				t.Errorf("focus fetched = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowFocusWithoutTimestampRefetches(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)

	var mu sync.Mutex
	overrideCalls := 0
	hold := make(chan struct{})
	m := newTestManager(t, api, clock, func(o *shoppingcart.Options) {
		o.GetCartOverride = func(ctx context.Context, key model.CartKey) (*model.ResponseCart, error) {
			mu.Lock()
			overrideCalls++
			n := overrideCalls
			mu.Unlock()
			// Hold every fetch after the initial load so the reload below
			// always finds the focus fetch in flight.
			if n > 1 {
				select {
				case <-hold:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return model.EmptyResponseCart(key), nil
		}
	})
	sub := loadedSubscription(t, m, siteKey)

	m.WindowFocused()
	reload := sub.ReloadFromServer()
	close(hold)
	if err := waitSettled(t, reload); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	// Initial load and focus refetch; the reload joins the focus fetch.
	if overrideCalls != 2 {
		t.Errorf("override calls = %d, want 2", overrideCalls)
	}
	if get, _ := api.calls(); get != 0 {
		t.Errorf("client GetCart called %d times with an override set", get)
	}
}

func TestReloadAfterQueuedMutationSettlesInOrder(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)

	api.block()
	sub := m.Subscribe(siteKey)
	add := sub.AddProductsToCart(product(1003, "value_bundle"))
	reload := sub.ReloadFromServer()
	api.release()

	if err := waitSettled(t, reload); err != nil {
		t.Fatal(err)
	}
	select {
	case <-add.Done():
	default:
		t.Fatal("reload settled before the mutation queued ahead of it")
	}
	if err := add.Err(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"value_bundle"}, slugs(sub.ResponseCart())); diff != "" {
		t.Errorf("cart when reload settled (-want +got):\n%s", diff)
	}
	// The reload rides on the setCart response instead of a second fetch.
	if get, set := api.calls(); get != 1 || set != 1 {
		t.Errorf("calls = %d get, %d set; want 1, 1", get, set)
	}
}

func TestReloadJoinsInFlightFetch(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)

	api.block()
	sub := m.Subscribe(siteKey)
	reloads := []*shoppingcart.Completion{sub.ReloadFromServer(), sub.ReloadFromServer()}
	api.release()

	for _, c := range reloads {
		if err := waitSettled(t, c); err != nil {
			t.Fatal(err)
		}
	}
	if get, _ := api.calls(); get != 1 {
		t.Errorf("get calls = %d, want 1", get)
	}
	if sub.State().Status != shoppingcart.StatusValid {
		t.Errorf("status = %q, want valid", sub.State().Status)
	}
}

func TestErrorStateAndRecovery(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	if err := waitSettled(t, sub.AddProductsToCart(product(1009, "value_bundle"))); err != nil {
		t.Fatal(err)
	}
	good := sub.ResponseCart()

	api.block()
	api.fail(errServerDown)
	failing := sub.AddProductsToCart(product(6, "domain_map"))
	queued := sub.RemoveCoupon()
	api.release()

	if err := waitSettled(t, failing); !errors.Is(err, errServerDown) {
		t.Errorf("failing action: got %v, want server error", err)
	}
	if err := waitSettled(t, queued); !errors.Is(err, shoppingcart.ErrCartInError) {
		t.Errorf("queued action: got %v, want ErrCartInError", err)
	}

	st := sub.State()
	if st.Status != shoppingcart.StatusError || !errors.Is(st.Err, errServerDown) {
		t.Fatalf("state = %q (%v), want error", st.Status, st.Err)
	}
	if st.Cart != good {
		t.Error("last good cart was not kept")
	}

	c := sub.AddProductsToCart(product(6, "domain_map"))
	if !errors.Is(c.Err(), shoppingcart.ErrCartInError) {
		t.Errorf("mutation in error state: got %v, want ErrCartInError", c.Err())
	}

	api.fail(nil)
	if err := waitSettled(t, sub.ReloadFromServer()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if sub.State().Status != shoppingcart.StatusValid {
		t.Errorf("status = %q, want valid", sub.State().Status)
	}
	if err := waitSettled(t, sub.AddProductsToCart(product(6, "domain_map"))); err != nil {
		t.Errorf("mutation after recovery: %v", err)
	}
}

func TestInitialLoadFailure(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	api.fail(errServerDown)
	m := newTestManager(t, api, clock, nil)

	sub := m.Subscribe(siteKey)
	st := waitForStatus(t, sub, shoppingcart.StatusError)
	if len(st.Cart.Products) != 0 {
		t.Errorf("expected the empty placeholder cart, got %d products", len(st.Cart.Products))
	}

	api.fail(nil)
	if err := waitSettled(t, sub.ReloadFromServer()); err != nil {
		t.Fatal(err)
	}
	if sub.State().Status != shoppingcart.StatusValid {
		t.Errorf("status = %q, want valid", sub.State().Status)
	}
}

func TestCloseRejectsQueuedActions(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	api.block()
	inFlight := sub.AddProductsToCart(product(1009, "value_bundle"))
	queued := sub.AddProductsToCart(product(6, "domain_map"))
	sub.Close()

	if err := waitSettled(t, queued); !errors.Is(err, shoppingcart.ErrSessionClosed) {
		t.Errorf("queued action: got %v, want ErrSessionClosed", err)
	}
	if m.Sessions() != 0 {
		t.Errorf("sessions = %d, want 0", m.Sessions())
	}
	if _, ok := <-sub.Updates(); ok {
		// Drain the last buffered state, then the channel must be closed.
		if _, ok := <-sub.Updates(); ok {
			t.Error("updates channel still open after close")
		}
	}

	api.release()
	if err := waitSettled(t, inFlight); err != nil {
		t.Errorf("in-flight action: got %v, want nil", err)
	}

	if c := sub.AddProductsToCart(product(6, "domain_map")); !errors.Is(c.Err(), shoppingcart.ErrSessionClosed) {
		t.Errorf("after close: got %v, want ErrSessionClosed", c.Err())
	}
}

func TestCompletionWaitHonoursContext(t *testing.T) {
	clock := newFakeClock()
	api := newFakeCartAPI(clock)
	m := newTestManager(t, api, clock, nil)
	sub := loadedSubscription(t, m, siteKey)

	api.block()
	c := sub.AddProductsToCart(product(1009, "value_bundle"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
	if c.Err() != nil {
		t.Errorf("Err before settle = %v, want nil", c.Err())
	}
}
