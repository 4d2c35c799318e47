package catalog

// DefaultProducts are WordPress.com plans, domain products and Jetpack
// products with their list prices in US cents.
var DefaultProducts = []Product{
	{ID: 1009, Slug: "personal-bundle", Name: "WordPress.com Personal", BillPeriod: BillPeriodAnnual, PriceInteger: 4800},
	{ID: 1003, Slug: "value_bundle", Name: "WordPress.com Premium", BillPeriod: BillPeriodAnnual, PriceInteger: 9600},
	{ID: 1008, Slug: "business-bundle", Name: "WordPress.com Business", BillPeriod: BillPeriodAnnual, PriceInteger: 30000},
	{ID: 1011, Slug: "ecommerce-bundle", Name: "WordPress.com eCommerce", BillPeriod: BillPeriodAnnual, PriceInteger: 54000},

	{ID: 5, Slug: "domain_map", Name: "Domain Mapping", BillPeriod: BillPeriodAnnual, PriceInteger: 1300},
	{ID: 6, Slug: "domain_reg", Name: "Domain Registration", BillPeriod: BillPeriodAnnual, PriceInteger: 1800},
	{ID: 12, Slug: "private_whois", Name: "Privacy Protection", BillPeriod: BillPeriodAnnual, PriceInteger: 0},

	{ID: 2100, Slug: "jetpack_backup_daily", Name: "Backup Daily", BillPeriod: BillPeriodAnnual, PriceInteger: 8388},
	{ID: 2101, Slug: "jetpack_backup_daily_monthly", Name: "Backup Daily", BillPeriod: BillPeriodMonthly, PriceInteger: 995},
	{ID: 2102, Slug: "jetpack_backup_realtime", Name: "Backup Real-time", BillPeriod: BillPeriodAnnual, PriceInteger: 41988},
	{ID: 2103, Slug: "jetpack_backup_realtime_monthly", Name: "Backup Real-time", BillPeriod: BillPeriodMonthly, PriceInteger: 4995},
	{ID: 2104, Slug: "jetpack_search", Name: "Search", BillPeriod: BillPeriodAnnual, PriceInteger: 5000},
	{ID: 2105, Slug: "jetpack_search_monthly", Name: "Search", BillPeriod: BillPeriodMonthly, PriceInteger: 500},
	{ID: 2106, Slug: "jetpack_scan", Name: "Scan Daily", BillPeriod: BillPeriodAnnual, PriceInteger: 8388},
	{ID: 2107, Slug: "jetpack_scan_monthly", Name: "Scan Daily", BillPeriod: BillPeriodMonthly, PriceInteger: 995},
	{ID: 2108, Slug: "jetpack_scan_realtime", Name: "Scan Real-time", BillPeriod: BillPeriodAnnual, PriceInteger: 19900},
	{ID: 2109, Slug: "jetpack_scan_realtime_monthly", Name: "Scan Real-time", BillPeriod: BillPeriodMonthly, PriceInteger: 2995},
	{ID: 2110, Slug: "jetpack_anti_spam", Name: "Anti-spam", BillPeriod: BillPeriodAnnual, PriceInteger: 8388},
	{ID: 2111, Slug: "jetpack_anti_spam_monthly", Name: "Anti-spam", BillPeriod: BillPeriodMonthly, PriceInteger: 995},
	{ID: 2112, Slug: "jetpack_backup_t1_yearly", Name: "Backup", BillPeriod: BillPeriodAnnual, PriceInteger: 8388},
	{ID: 2113, Slug: "jetpack_backup_t1_monthly", Name: "Backup", BillPeriod: BillPeriodMonthly, PriceInteger: 995},
	{ID: 2114, Slug: "jetpack_backup_t2_yearly", Name: "Backup", BillPeriod: BillPeriodAnnual, PriceInteger: 35940},
	{ID: 2115, Slug: "jetpack_backup_t2_monthly", Name: "Backup", BillPeriod: BillPeriodMonthly, PriceInteger: 4995},

	{ID: 800, Slug: "wpcom_search", Name: "Search", BillPeriod: BillPeriodAnnual, PriceInteger: 5000},
	{ID: 801, Slug: "wpcom_search_monthly", Name: "Search", BillPeriod: BillPeriodMonthly, PriceInteger: 500},
}

// DefaultCoupons are the coupons accepted in development.
var DefaultCoupons = []Coupon{
	{Code: "ABCD", DiscountPercent: 10},
	{Code: "HALFOFF", DiscountPercent: 50},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(DefaultProducts, DefaultCoupons)
}
